package domain

import (
	"context"

	"github.com/google/uuid"
)

// RecordFilter narrows a record listing. Zero values mean "no filter".
type RecordFilter struct {
	MarketType MarketType
	Origin     Origin
	Year       int // commercial period: calendar year of the record date
}

// RecordRepository defines the persistence contract the core consumes.
// Every method is scoped by broker: implementations must never return or
// touch a record belonging to a different broker, even on a matching key.
//
// The natural-key upsert is expressed as an explicit two-step contract
// (GetByKey then Create or Update) so any storage backend can implement it
// uniformly.
type RecordRepository interface {
	// GetByKey retrieves a record by its natural key within the broker scope.
	// Returns ErrRecordNotFound on a miss.
	GetByKey(ctx context.Context, brokerID uuid.UUID, key RecordKey) (*QualificationRecord, error)

	// GetByID retrieves a record by identity within the broker scope.
	// Returns ErrRecordNotFound on a miss.
	GetByID(ctx context.Context, brokerID, id uuid.UUID) (*QualificationRecord, error)

	// Create persists a new record
	Create(ctx context.Context, rec *QualificationRecord) error

	// Update fully replaces the stored state of an existing record
	Update(ctx context.Context, rec *QualificationRecord) error

	// Delete removes a record by identity within the broker scope.
	// Returns ErrRecordNotFound on a miss.
	Delete(ctx context.Context, brokerID, id uuid.UUID) error

	// List retrieves the broker's records matching the filter, ordered by
	// date descending then instrument ascending
	List(ctx context.Context, brokerID uuid.UUID, filter RecordFilter) ([]*QualificationRecord, error)
}

// BrokerRepository defines the identity collaborator the core consumes to
// resolve the acting broker scope.
type BrokerRepository interface {
	// GetByID retrieves a broker by identity. Returns ErrBrokerNotFound on a miss.
	GetByID(ctx context.Context, id uuid.UUID) (*Broker, error)

	// GetByCode retrieves a broker by its unique code. Returns ErrBrokerNotFound on a miss.
	GetByCode(ctx context.Context, code string) (*Broker, error)

	// GetByUserID resolves the acting user to its linked broker.
	// Returns ErrUnknownBrokerScope when the user is linked to none.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Broker, error)

	// Create persists a new broker
	Create(ctx context.Context, broker *Broker) error
}
