package leads

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChangeChannel is the redis channel carrying lead change events.
const ChangeChannel = "meridian:leads:changes"

// ChangeKind classifies a change event.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent describes one mutation of the lead collection. For
// reassignments PrevAssignedTo carries the previous owner so the relay can
// notify the agent who just lost the lead.
type ChangeEvent struct {
	Kind           ChangeKind `json:"kind"`
	Lead           Lead       `json:"lead"`
	PrevAssignedTo string     `json:"prev_assigned_to,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// Publisher emits change events after successful writes.
type Publisher interface {
	PublishChange(ctx context.Context, evt ChangeEvent)
}

// ChangeCounter counts published change events by kind. Satisfied by
// observability.Metrics.
type ChangeCounter interface {
	RecordLeadChange(kind string)
}

// RedisPublisher publishes change events on the redis change channel.
// Publishing is best effort: the store is the source of truth and the
// relay is a pass-through, so a failed publish is logged, not returned.
type RedisPublisher struct {
	client  *redis.Client
	logger  *slog.Logger
	counter ChangeCounter
}

// NewRedisPublisher constructs a RedisPublisher. counter may be nil.
func NewRedisPublisher(logger *slog.Logger, client *redis.Client, counter ChangeCounter) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{client: client, logger: logger, counter: counter}
}

func (p *RedisPublisher) PublishChange(ctx context.Context, evt ChangeEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error("marshal lead change event", slog.Any("error", err))
		return
	}
	if err := p.client.Publish(ctx, ChangeChannel, payload).Err(); err != nil {
		p.logger.Warn("publish lead change event",
			slog.String("kind", string(evt.Kind)),
			slog.String("lead_id", evt.Lead.ID),
			slog.Any("error", err))
		return
	}
	if p.counter != nil {
		p.counter.RecordLeadChange(string(evt.Kind))
	}
}
