package alerts

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task types
const (
	TaskTelegramRelay     = "telegram:relay"
	TaskBroadcastFanout   = "broadcast:fanout"
	TaskConversationPurge = "conversation:purge"
)

// Queues, highest priority first.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

type RelayPayload struct {
	Text string `json:"text"`
}

type BroadcastPayload struct {
	BroadcastID string `json:"broadcast_id"`
	AdminID     string `json:"admin_id"`
	Content     string `json:"content"`
	// TargetRole limits recipients to one role; empty means everyone.
	TargetRole string `json:"target_role,omitempty"`
}

func NewRelayTask(text string) (*asynq.Task, error) {
	return newTask(TaskTelegramRelay, RelayPayload{Text: text})
}

func NewBroadcastTask(p BroadcastPayload) (*asynq.Task, error) {
	return newTask(TaskBroadcastFanout, p)
}

func NewPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskConversationPurge, nil)
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return asynq.NewTask(typ, b), nil
}
