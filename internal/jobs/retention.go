package jobs

import (
	"log/slog"
	"time"

	"vistrail/internal/config"
	"vistrail/internal/database"
	"vistrail/internal/funnels"
	"vistrail/internal/pkg/geoip"
	"vistrail/internal/rules"
	"vistrail/internal/sessions"
)

// RetentionJob deletes sessions past the retention window, together with
// their funnel completions and rule triggers. Data minimization: expired
// visits leave no trace.
type RetentionJob struct {
	db     *database.Manager
	logger *slog.Logger
	cfg    *config.Config
}

// NewRetentionJob creates the job.
func NewRetentionJob(db *database.Manager, logger *slog.Logger, cfg *config.Config) *RetentionJob {
	return &RetentionJob{db: db, logger: logger, cfg: cfg}
}

const retentionBatchSize = 1000

// Run deletes expired rows in batches so the database is never locked for
// long.
func (j *RetentionJob) Run() error {
	retentionDays := j.cfg.SessionRetentionDays
	if retentionDays <= 0 {
		j.logger.Debug("Session retention disabled")
		return nil
	}

	db := j.db.GetConnection()
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	var countToDelete int64
	if err := db.Model(&sessions.Session{}).
		Where("last_seen < ?", cutoff).
		Count(&countToDelete).Error; err != nil {
		return err
	}
	if countToDelete == 0 {
		j.logger.Debug("No expired sessions to clean up")
		return nil
	}

	var totalDeleted int64
	for {
		var batch []sessions.Session
		if err := db.Select("id", "public_id").
			Where("last_seen < ?", cutoff).
			Limit(retentionBatchSize).
			Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}

		publicIDs := make([]string, len(batch))
		ids := make([]uint, len(batch))
		for i, s := range batch {
			publicIDs[i] = s.PublicID
			ids[i] = s.ID
		}

		if err := db.Where("session_id IN ?", publicIDs).Delete(&funnels.Completion{}).Error; err != nil {
			return err
		}
		if err := db.Where("session_id IN ?", publicIDs).Delete(&rules.Trigger{}).Error; err != nil {
			return err
		}
		result := db.Where("id IN ?", ids).Delete(&sessions.Session{})
		if result.Error != nil {
			return result.Error
		}
		totalDeleted += result.RowsAffected

		if len(batch) < retentionBatchSize {
			break
		}
		// Small delay between batches to prevent lock contention.
		time.Sleep(100 * time.Millisecond)
	}

	j.logger.Info("Cleaned up expired sessions",
		slog.Int64("deleted_count", totalDeleted),
		slog.Int("retention_days", retentionDays))
	return nil
}

// reloadGeoDatabase reopens the GeoIP database so a refreshed file on disk
// takes effect without a restart.
func (s *Scheduler) reloadGeoDatabase() error {
	geoip.ReloadGeoDB()
	return nil
}
