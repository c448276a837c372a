// Package seeder ensures a deployment starts with a usable broker. Brokers
// are normally administered out of band; the seeder only covers local and
// first-boot environments.
package seeder

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/nuamhub/taxqual-backend/internal/domain"
)

// BrokerSeeder handles seeding of a default broker scope
type BrokerSeeder struct {
	repo domain.BrokerRepository
}

// NewBrokerSeeder creates a new BrokerSeeder instance
func NewBrokerSeeder(repo domain.BrokerRepository) *BrokerSeeder {
	return &BrokerSeeder{repo: repo}
}

// Seed ensures a broker with the given code exists, creating it linked to
// the given acting user if absent. Returns the broker either way.
func (s *BrokerSeeder) Seed(ctx context.Context, name, code string, userID uuid.UUID) (*domain.Broker, error) {
	existing, err := s.repo.GetByCode(ctx, code)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrBrokerNotFound) {
		return nil, err
	}

	broker := &domain.Broker{
		ID:     uuid.New(),
		Name:   name,
		Code:   code,
		Active: true,
		UserID: &userID,
	}
	if err := broker.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, broker); err != nil {
		return nil, err
	}
	return broker, nil
}
