package domain

import (
	"errors"

	"github.com/google/uuid"
)

// Broker is the owning scope of qualification records. Every core operation
// is constrained to exactly one broker; records are never visible or mutable
// across broker boundaries.
type Broker struct {
	ID     uuid.UUID
	Name   string
	Code   string
	Active bool
	UserID *uuid.UUID // acting identity linked to this broker, nil if unlinked
}

// Validate ensures the broker adheres to domain rules
func (b *Broker) Validate() error {
	if b.Name == "" {
		return errors.New("broker name cannot be empty")
	}
	if b.Code == "" {
		return errors.New("broker code cannot be empty")
	}
	return nil
}
