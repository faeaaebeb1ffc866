package funnels_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vistrail/internal/funnels"
	"vistrail/internal/pkg/urlmatch"
	"vistrail/internal/testsupport"
)

func seedSteps(t *testing.T, store *funnels.Store) []funnels.Step {
	t.Helper()

	first, err := funnels.NewPageViewStep("example.com", 1, "Visit pricing", "/pricing", urlmatch.MatchExact)
	require.NoError(t, err)
	require.NoError(t, store.SaveStep(&first))

	second, err := funnels.NewEventStep("example.com", 2, "Click signup", funnels.EventConfig{
		EventType: funnels.EventClick,
		Selector:  "#signup",
	})
	require.NoError(t, err)
	require.NoError(t, store.SaveStep(&second))

	return []funnels.Step{first, second}
}

func TestDefinitionsBySiteOrdersBySteps(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := funnels.NewStore(db, testsupport.GetLogger())
	seedSteps(t, store)

	steps, err := store.DefinitionsBySite("example.com")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].StepNumber)
	assert.Equal(t, 2, steps[1].StepNumber)

	other, err := store.DefinitionsBySite("other.com")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRecordCompletionIsIdempotent(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := funnels.NewStore(db, testsupport.GetLogger())
	steps := seedSteps(t, store)

	first, err := store.RecordCompletion(steps[0].ID, "session-1", "example.com")
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.False(t, first.AlreadyCompleted)

	repeat, err := store.RecordCompletion(steps[0].ID, "session-1", "example.com")
	require.NoError(t, err)
	assert.True(t, repeat.Success)
	assert.True(t, repeat.AlreadyCompleted)

	counts, err := store.CompletionCounts("example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[steps[0].ID])
}

func TestRecordCompletionSeparateSessions(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := funnels.NewStore(db, testsupport.GetLogger())
	steps := seedSteps(t, store)

	for _, sessionID := range []string{"a", "b", "c"} {
		result, err := store.RecordCompletion(steps[1].ID, sessionID, "example.com")
		require.NoError(t, err)
		assert.False(t, result.AlreadyCompleted)
	}

	counts, err := store.CompletionCounts("example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[steps[1].ID])
}

func TestNewEventStepValidatesConfig(t *testing.T) {
	over := 150
	_, err := funnels.NewEventStep("example.com", 1, "Bad scroll", funnels.EventConfig{
		EventType:        funnels.EventScroll,
		ScrollPercentage: &over,
	})
	assert.Error(t, err)

	_, err = funnels.NewEventStep("example.com", 1, "Bad click", funnels.EventConfig{
		EventType: funnels.EventClick,
	})
	assert.Error(t, err)

	_, err = funnels.NewEventStep("example.com", 1, "Bad link", funnels.EventConfig{
		EventType: funnels.EventClickLink,
	})
	assert.Error(t, err)
}
