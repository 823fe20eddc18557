package services

import (
	"context"
	"fmt"
	"time"

	"license-api/pkg/logging"

	"github.com/redis/go-redis/v9"
)

// EventDedup suppresses duplicate side effects of at-least-once webhook
// delivery. Store writes are idempotent merges and never depend on it;
// it only keeps a retried charge from sending a second activation
// email. Backed by redis SET NX with a TTL; a nil client disables it.
type EventDedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEventDedup creates a new event dedup instance
func NewEventDedup(client *redis.Client) *EventDedup {
	return &EventDedup{
		client: client,
		ttl:    24 * time.Hour,
	}
}

// SeenBefore records the event and reports whether it was already
// processed. Returns false on any redis failure: a missed dedup means
// at worst a duplicate email, while a false positive would swallow an
// event's side effects.
func (d *EventDedup) SeenBefore(ctx context.Context, eventID string) bool {
	if d.client == nil || eventID == "" {
		return false
	}

	key := fmt.Sprintf("billing_event:%s", eventID)
	set, err := d.client.SetNX(ctx, key, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		logging.Errorf("Event dedup check failed for %s: %v", eventID, err)
		return false
	}
	if !set {
		logging.Infof("Duplicate delivery detected for event %s", eventID)
	}
	return !set
}
