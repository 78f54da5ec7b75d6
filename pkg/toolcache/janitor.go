package toolcache

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Janitor periodically removes expired records from a store on a cron
// schedule.
type Janitor struct {
	cron *cron.Cron
}

// NewJanitor schedules CleanupExpired(ttl) on the store using a standard
// cron expression (e.g. "*/10 * * * *").
func NewJanitor(store *Store, ttl time.Duration, schedule string) (*Janitor, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrConfiguration)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: janitor TTL must be positive", ErrConfiguration)
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		removed, err := store.CleanupExpired(ttl)
		if err != nil {
			log.Warn().Err(err).Msg("Cache cleanup failed")
			return
		}
		log.Debug().Int("removed", removed).Msg("Cache cleanup ran")
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cleanup schedule %q: %v", ErrConfiguration, schedule, err)
	}

	return &Janitor{cron: c}, nil
}

// Start begins running scheduled cleanups in the background.
func (j *Janitor) Start() {
	j.cron.Start()
	log.Info().Msg("Cache janitor started")
}

// Stop halts scheduling and waits for an in-flight cleanup to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Cache janitor stopped")
}
