package pagedb

import "github.com/google/uuid"

// TransactionId is an opaque, client-created identity with value equality
// and no lifecycle owned by the core. Backed by a random UUID rather than a
// process-local counter so ids stay unique across processes.
type TransactionId struct {
	id uuid.UUID
}

// NewTransactionId creates a fresh transaction identity. Clients own the
// transaction's lifecycle entirely; the core never constructs one itself.
func NewTransactionId() TransactionId {
	return TransactionId{id: uuid.New()}
}

func (t TransactionId) String() string {
	return t.id.String()
}
