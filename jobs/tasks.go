package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeWelcomeMail is the task type for sending onboarding mail to a
	// freshly provisioned principal.
	TaskTypeWelcomeMail = "mail:welcome"
	// TaskTypeSessionSweep prunes expired remote auth sessions.
	TaskTypeSessionSweep = "auth:session-sweep"
	// TaskTypeCacheRefresh asks every live session to reload its caches.
	TaskTypeCacheRefresh = "cache:refresh-notify"
)

// WelcomeMailPayload describes the onboarding mail.
type WelcomeMailPayload struct {
	To          string `json:"to"`
	DisplayName string `json:"display_name"`
}

// NewWelcomeMailTask constructs an Asynq task.
func NewWelcomeMailTask(payload WelcomeMailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWelcomeMail, data), nil
}

// HandleWelcomeMailTask processes TaskTypeWelcomeMail tasks.
func HandleWelcomeMailTask(ctx context.Context, t *asynq.Task) error {
	var payload WelcomeMailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder until the SMTP relay lands.
	fmt.Printf("[jobs] welcome mail to %s (%s)\n", payload.To, payload.DisplayName)
	return nil
}

// NewSessionSweepTask constructs the sweep task.
func NewSessionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSessionSweep, nil)
}

// NewCacheRefreshTask constructs the refresh-notify task.
func NewCacheRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskTypeCacheRefresh, nil)
}

// Enqueuer wraps the Asynq client for the provisioning service.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer constructs an Enqueuer.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueWelcome queues the onboarding mail.
func (e *Enqueuer) EnqueueWelcome(ctx context.Context, email, displayName string) error {
	task, err := NewWelcomeMailTask(WelcomeMailPayload{To: email, DisplayName: displayName})
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}
