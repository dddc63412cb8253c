package state

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Janitor prunes stale user-message caches on a cron schedule.
type Janitor struct {
	cache    *UserCache
	schedule string
	maxAge   time.Duration
	cron     *cron.Cron
	logger   *slog.Logger
	now      func() time.Time
}

// NewJanitor creates a Janitor. The schedule is validated by Start.
func NewJanitor(cache *UserCache, schedule string, maxAge time.Duration) *Janitor {
	return &Janitor{
		cache:    cache,
		schedule: schedule,
		maxAge:   maxAge,
		cron:     cron.New(cron.WithParser(cronParser)),
		logger:   slog.Default().With("component", "janitor"),
		now:      time.Now,
	}
}

// Start registers the prune job and starts the cron ticker.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", j.schedule, err)
	}
	j.cron.Start()
	j.logger.Info("cache janitor scheduled", "schedule", j.schedule, "max_age", j.maxAge)
	return nil
}

// RunOnce prunes immediately and returns how many caches were removed.
func (j *Janitor) RunOnce() (int, error) {
	pruned, err := j.cache.Prune(j.now(), j.maxAge)
	for _, id := range pruned {
		j.logger.Info("pruned user cache", "session_id", string(id))
	}
	return len(pruned), err
}

func (j *Janitor) run() {
	if _, err := j.RunOnce(); err != nil {
		j.logger.Error("prune user caches", "error", err)
	}
}

// Stop stops the cron ticker and waits for a running prune to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
