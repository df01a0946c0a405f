package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeNotify       = "notify:operator"
	TaskTypeStateCleanup = "state:cleanup"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues weights the queues a worker consumes.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// NotifyPayload is a rendered operator notification awaiting delivery.
type NotifyPayload struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type StateCleanupPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewNotifyTask builds a delivery task retried up to maxRetry times.
// Error reports go to the critical queue so they are not starved by order traffic.
func NewNotifyTask(payload NotifyPayload, maxRetry int) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	queue := QueueDefault
	if payload.Kind == "error" {
		queue = QueueCritical
	}

	return asynq.NewTask(TaskTypeNotify, data,
		asynq.Queue(queue),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(time.Minute),
	), nil
}

func NewStateCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(StateCleanupPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeStateCleanup, payload, asynq.Queue(QueueLow), asynq.MaxRetry(1)), nil
}

// ParseNotifyPayload decodes the payload of a TaskTypeNotify task.
func ParseNotifyPayload(task *asynq.Task) (NotifyPayload, error) {
	var payload NotifyPayload
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}

func ParseStateCleanupPayload(task *asynq.Task) (StateCleanupPayload, error) {
	var payload StateCleanupPayload
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}
