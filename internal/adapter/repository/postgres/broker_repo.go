package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nuamhub/taxqual-backend/internal/domain"
)

// brokerRepository implements domain.BrokerRepository
type brokerRepository struct {
	db *DB
}

// NewBrokerRepository creates a new broker repository
func NewBrokerRepository(db *DB) domain.BrokerRepository {
	return &brokerRepository{db: db}
}

const brokerColumns = "id, name, code, active, user_id"

func scanBroker(row rowScanner) (*domain.Broker, error) {
	var broker domain.Broker
	var userID sql.NullString

	if err := row.Scan(&broker.ID, &broker.Name, &broker.Code, &broker.Active, &userID); err != nil {
		return nil, err
	}

	if userID.Valid {
		parsed, err := uuid.Parse(userID.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse user_id: %w", err)
		}
		broker.UserID = &parsed
	}
	return &broker, nil
}

// GetByID retrieves a broker by identity
func (r *brokerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Broker, error) {
	query := "SELECT " + brokerColumns + " FROM brokers WHERE id = $1"

	broker, err := scanBroker(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBrokerNotFound
		}
		return nil, fmt.Errorf("failed to get broker by ID: %w", err)
	}
	return broker, nil
}

// GetByCode retrieves a broker by its unique code
func (r *brokerRepository) GetByCode(ctx context.Context, code string) (*domain.Broker, error) {
	query := "SELECT " + brokerColumns + " FROM brokers WHERE code = $1"

	broker, err := scanBroker(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBrokerNotFound
		}
		return nil, fmt.Errorf("failed to get broker by code: %w", err)
	}
	return broker, nil
}

// GetByUserID resolves the acting user to its linked broker
func (r *brokerRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Broker, error) {
	query := "SELECT " + brokerColumns + " FROM brokers WHERE user_id = $1"

	broker, err := scanBroker(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUnknownBrokerScope
		}
		return nil, fmt.Errorf("failed to resolve broker for user: %w", err)
	}
	return broker, nil
}

// Create persists a new broker
func (r *brokerRepository) Create(ctx context.Context, broker *domain.Broker) error {
	query := "INSERT INTO brokers (id, name, code, active, user_id) VALUES ($1, $2, $3, $4, $5)"

	var userID any
	if broker.UserID != nil {
		userID = *broker.UserID
	}

	if _, err := r.db.ExecContext(ctx, query, broker.ID, broker.Name, broker.Code, broker.Active, userID); err != nil {
		return fmt.Errorf("failed to create broker: %w", err)
	}
	return nil
}
