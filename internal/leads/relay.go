package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-crm/meridian-crm/internal/rbac"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Relay subscribes to the lead change channel and forwards events to one
// caller, applying the same permission filter as every other read path.
// Events flow in arrival order; the relay neither reorders, batches, nor
// deduplicates — it is a pass-through, not a queue.
type Relay struct {
	logger *slog.Logger
	client *redis.Client
	eval   rbac.Evaluator

	mu        sync.Mutex
	pubsub    *redis.PubSub
	closeOnce sync.Once
}

// NewRelay builds a relay bound to one actor.
func NewRelay(logger *slog.Logger, client *redis.Client, actor rbac.Actor) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		logger: logger,
		client: client,
		eval:   rbac.NewEvaluator(actor),
	}
}

// Subscribe opens the relay's single subscription and returns the event
// channel. The channel closes when the context is cancelled or Unsubscribe
// is called. Calling Subscribe twice on one relay is an error.
func (r *Relay) Subscribe(ctx context.Context) (<-chan ChangeEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubsub != nil {
		return nil, errors.New("leads: relay already subscribed")
	}

	filter := r.eval.DeriveLeadFilter()

	pubsub := r.client.Subscribe(ctx, ChangeChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("leads: subscribe changes: %w: %v", shared.ErrStoreUnavailable, err)
	}
	r.pubsub = pubsub

	out := make(chan ChangeEvent, 16)
	go r.forward(ctx, pubsub.Channel(), out, filter)
	go func() {
		<-ctx.Done()
		r.Unsubscribe()
	}()
	return out, nil
}

func (r *Relay) forward(ctx context.Context, in <-chan *redis.Message, out chan<- ChangeEvent, filter rbac.LeadFilter) {
	defer close(out)
	for msg := range in {
		var evt ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			r.logger.Warn("decode lead change event", slog.Any("error", err))
			continue
		}
		if !r.visible(evt, filter) {
			continue
		}
		select {
		case out <- evt:
		case <-ctx.Done():
			return
		}
	}
}

// visible applies the actor's filter to an event. Restricted actors also
// see events for leads just reassigned away from them, so their view of a
// lost lead can converge.
func (r *Relay) visible(evt ChangeEvent, filter rbac.LeadFilter) bool {
	if filter.Matches(evt.Lead.AssignedTo) {
		return true
	}
	return evt.PrevAssignedTo != "" && filter.Matches(evt.PrevAssignedTo)
}

// Unsubscribe releases the underlying subscription. It is idempotent and
// safe to call concurrently with channel consumption; the stream resource
// is released exactly once.
func (r *Relay) Unsubscribe() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		pubsub := r.pubsub
		r.mu.Unlock()
		if pubsub != nil {
			if err := pubsub.Close(); err != nil {
				r.logger.Warn("close lead subscription", slog.Any("error", err))
			}
		}
	})
}
