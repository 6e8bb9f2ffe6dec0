package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type PurgeEnqueuer interface {
	EnqueuePurge(ctx context.Context) error
}

// Scheduler queues periodic work. The work itself runs on the asynq worker
// so that only one replica performs each sweep.
type Scheduler struct {
	log  *logrus.Logger
	cron *cron.Cron
}

func NewScheduler(log *logrus.Logger, purgeSpec string, q PurgeEnqueuer) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(purgeSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := q.EnqueuePurge(ctx); err != nil {
			log.WithError(err).Error("failed to queue conversation purge")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("purge schedule %q: %w", purgeSpec, err)
	}
	return &Scheduler{log: log, cron: c}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("jobs", len(s.cron.Entries())).Info("scheduler started")
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
