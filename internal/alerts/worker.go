package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/config"
)

// BroadcastDeliverer posts a broadcast into each recipient's conversation
// with the admin and reports how many got it.
type BroadcastDeliverer interface {
	DeliverBroadcast(ctx context.Context, adminID, content string, recipients []string) (int, error)
}

// BroadcastLedger resolves broadcast audiences and records the outcome.
type BroadcastLedger interface {
	Recipients(ctx context.Context, role string) ([]string, error)
	FinishBroadcast(ctx context.Context, id, status string, recipients int) error
}

type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

type Worker struct {
	log     *logrus.Logger
	sender  Sender
	ledger  BroadcastLedger
	deliver BroadcastDeliverer
	purger  Purger
}

func NewWorker(log *logrus.Logger, sender Sender, ledger BroadcastLedger, deliver BroadcastDeliverer, purger Purger) *Worker {
	return &Worker{log: log, sender: sender, ledger: ledger, deliver: deliver, purger: purger}
}

// Mux routes task types to their handlers.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTelegramRelay, w.handleRelay)
	mux.HandleFunc(TaskBroadcastFanout, w.handleBroadcast)
	mux.HandleFunc(TaskConversationPurge, w.handlePurge)
	return mux
}

// NewServer builds the asynq server that runs Worker tasks.
func NewServer(cfg config.RedisConfig, concurrency int, log *logrus.Logger) *asynq.Server {
	return asynq.NewServer(RedisOpt(cfg), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
			QueueLow:      1,
		},
		Logger: log,
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, t *asynq.Task, err error) {
			log.WithError(err).WithField("task", t.Type()).Error("task failed")
		}),
	})
}

func (w *Worker) handleRelay(ctx context.Context, t *asynq.Task) error {
	var p RelayPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode relay payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.sender.Send(ctx, p.Text); err != nil {
		return err
	}
	w.log.WithField("task", t.Type()).Debug("relay delivered")
	return nil
}

func (w *Worker) handleBroadcast(ctx context.Context, t *asynq.Task) error {
	var p BroadcastPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode broadcast payload: %v: %w", err, asynq.SkipRetry)
	}
	log := w.log.WithFields(logrus.Fields{"task": t.Type(), "broadcast_id": p.BroadcastID})

	recipients, err := w.ledger.Recipients(ctx, p.TargetRole)
	if err != nil {
		w.finish(ctx, log, p.BroadcastID, "failed", 0)
		return fmt.Errorf("broadcast recipients: %w", err)
	}
	n, err := w.deliver.DeliverBroadcast(ctx, p.AdminID, p.Content, recipients)
	if err != nil {
		w.finish(ctx, log, p.BroadcastID, "failed", n)
		return fmt.Errorf("broadcast delivery: %w", err)
	}
	w.finish(ctx, log, p.BroadcastID, "sent", n)
	log.WithField("recipients", n).Info("broadcast delivered")
	return nil
}

func (w *Worker) finish(ctx context.Context, log *logrus.Entry, id, status string, n int) {
	if err := w.ledger.FinishBroadcast(ctx, id, status, n); err != nil {
		log.WithError(err).Error("failed to record broadcast outcome")
	}
}

func (w *Worker) handlePurge(ctx context.Context, _ *asynq.Task) error {
	_, err := w.purger.Purge(ctx)
	return err
}
