package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/config"
)

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher schedules background work on the asynq queues.
type Dispatcher struct {
	log *logrus.Logger
	q   Enqueuer
}

func NewDispatcher(log *logrus.Logger, q Enqueuer) *Dispatcher {
	return &Dispatcher{log: log, q: q}
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

func NewClient(cfg config.RedisConfig) *asynq.Client {
	return asynq.NewClient(RedisOpt(cfg))
}

// RelayToAdmins queues text for the admin Telegram chat.
func (d *Dispatcher) RelayToAdmins(ctx context.Context, text string) error {
	const op = "alerts.Dispatcher.RelayToAdmins"

	task, err := NewRelayTask(text)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	info, err := d.q.EnqueueContext(ctx, task, asynq.Queue(QueueCritical), asynq.MaxRetry(5))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	d.log.WithFields(logrus.Fields{"op": op, "task_id": info.ID}).Debug("relay queued")
	return nil
}

func (d *Dispatcher) EnqueueBroadcast(ctx context.Context, p BroadcastPayload) error {
	const op = "alerts.Dispatcher.EnqueueBroadcast"

	task, err := NewBroadcastTask(p)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	// Retrying a half-delivered broadcast would message people twice.
	info, err := d.q.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(0), asynq.Timeout(30*time.Minute))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	d.log.WithFields(logrus.Fields{"op": op, "task_id": info.ID, "broadcast_id": p.BroadcastID}).Info("broadcast queued")
	return nil
}

// EnqueuePurge queues a purge sweep. A sweep already waiting is enough.
func (d *Dispatcher) EnqueuePurge(ctx context.Context) error {
	const op = "alerts.Dispatcher.EnqueuePurge"

	_, err := d.q.EnqueueContext(ctx, NewPurgeTask(), asynq.Queue(QueueLow), asynq.Unique(30*time.Minute))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		d.log.WithField("op", op).Debug("purge already queued")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
