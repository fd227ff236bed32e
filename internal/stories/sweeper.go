package stories

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/samvera/stories/internal/db"
	"github.com/samvera/stories/internal/logger"
)

const sweepTimeout = 1 * time.Minute

// Sweeper periodically hard-deletes stories past their expiration plus a
// retention window. This is the time-based destruction rule the playback
// engine relies on being enforced elsewhere.
type Sweeper struct {
	repos     *db.Repositories
	interval  time.Duration
	retention time.Duration
	scheduler gocron.Scheduler
}

// NewSweeper creates a sweeper that runs every interval and deletes stories
// expired for longer than retention
func NewSweeper(repos *db.Repositories, interval, retention time.Duration) *Sweeper {
	return &Sweeper{
		repos:     repos,
		interval:  interval,
		retention: retention,
	}
}

// Start schedules the sweep job and runs it once immediately
func (s *Sweeper) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create sweep scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sweep),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule story sweep: %w", err)
	}

	scheduler.Start()
	s.scheduler = scheduler

	logger.Log.Info().
		Dur("interval", s.interval).
		Dur("retention", s.retention).
		Msg("Story expiry sweeper started")

	return nil
}

// Stop shuts down the sweep scheduler
func (s *Sweeper) Stop() {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Shutdown(); err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to shut down story sweeper")
	}
	s.scheduler = nil
}

// sweep removes stories whose expiration is older than the retention window.
// Organizations with a settings row keep their own retention; everything else
// falls under the configured default.
func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	now := time.Now().UTC()
	var removed int64
	var overridden []uuid.UUID

	overrides, err := s.repos.OrgSettings.List(ctx)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to load org retention overrides, sweeping with default only")
		overrides = nil
	}

	for _, settings := range overrides {
		overridden = append(overridden, settings.OrgID)
		retention := time.Duration(settings.StoryRetentionHours) * time.Hour
		n, err := s.repos.Stories.DeleteExpiredBeforeInOrg(ctx, settings.OrgID, now.Add(-retention))
		if err != nil {
			logger.Log.Error().
				Err(err).
				Str("org_id", settings.OrgID.String()).
				Msg("Org story sweep failed")
			continue
		}
		removed += n
	}

	n, err := s.repos.Stories.DeleteExpiredBefore(ctx, now.Add(-s.retention), overridden)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Story sweep failed")
		return
	}
	removed += n

	if removed > 0 {
		logger.Log.Info().
			Int64("removed", removed).
			Msg("Swept expired stories")
	}
}
