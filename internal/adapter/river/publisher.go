package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/croftlabs/certbill/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// EventJobArgs carries a lifecycle event for async fan-out. River serializes
// this as JSON into its job queue table; the snapshot is self-contained so
// the worker never needs to query the ledger.
type EventJobArgs struct {
	Event     string `json:"event"`
	AccountID string `json:"account_id"`
	DomainID  string `json:"domain_id,omitempty"`
	Domain    string `json:"domain,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (EventJobArgs) Kind() string { return "billing.lifecycle" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a lifecycle event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.Event, ref domain.EventRef) error {
	_, err := p.client.Insert(ctx, EventJobArgs{
		Event:     string(event),
		AccountID: ref.AccountID,
		DomainID:  ref.DomainID,
		Domain:    ref.Domain,
		Detail:    ref.Detail,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing event job: %w", err)
	}
	return nil
}
