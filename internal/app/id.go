package app

import "github.com/google/uuid"

// newID produces identifiers for domains, transactions and audit entries.
// Transaction ids double as idempotency tokens on provider calls, so they
// must be unique across retries of the same logical operation.
func newID() string {
	return uuid.NewString()
}
