// Package jobs defines the background task types and the Asynq worker
// that processes them.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-crm/meridian-crm/internal/leads"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeFirstTouch reminds the assignee to contact a fresh lead.
	TaskTypeFirstTouch = "leads:first_touch"
	// TaskTypeFollowupScan sweeps for leads with an overdue follow-up date.
	TaskTypeFollowupScan = "leads:followup_scan"
)

// FirstTouchPayload carries the lead snapshot for the first-touch reminder.
type FirstTouchPayload struct {
	LeadID     string `json:"lead_id"`
	LeadName   string `json:"lead_name"`
	AssignedTo string `json:"assigned_to"`
}

// NewFirstTouchTask constructs an Asynq task for a freshly created lead.
func NewFirstTouchTask(payload FirstTouchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeFirstTouch, data), nil
}

// HandleFirstTouchTask processes TaskTypeFirstTouch tasks.
func HandleFirstTouchTask(logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload FirstTouchPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		// Notification delivery (email, push) plugs in here; for now the
		// reminder lands in the worker log.
		logger.Info("first touch reminder",
			"lead_id", payload.LeadID,
			"lead_name", payload.LeadName,
			"assigned_to", payload.AssignedTo)
		return nil
	}
}

// NewFollowupScanTask constructs the periodic follow-up sweep task.
func NewFollowupScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeFollowupScan, nil)
}

// Client submits jobs to the queue and satisfies the enqueuer contract
// used by the lead service.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueFirstTouch schedules the first-touch reminder for a new lead.
func (c *Client) EnqueueFirstTouch(ctx context.Context, lead leads.Lead) error {
	task, err := NewFirstTouchTask(FirstTouchPayload{
		LeadID:     lead.ID,
		LeadName:   lead.Name,
		AssignedTo: lead.AssignedTo,
	})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.ProcessIn(15*time.Minute))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
