// Package repository declares the storage the services depend on.
//
// Lookups of missing rows fail with errs.ErrNotFound and unique clashes with
// errs.ErrAlreadyExists.
package repository

import (
	"context"
	"time"

	"github.com/and161185/bloomplan/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository stores accounts and the ids of revoked access tokens.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// RevokeToken denies jti until expiresAt.
	RevokeToken(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// PlanRepository stores plans and their delivery events. Every call is scoped
// to the owning user; plans of other users look like missing ones.
type PlanRepository interface {
	// Create inserts a draft plan.
	Create(ctx context.Context, p *model.Plan) error
	// List returns the user's plans without events, newest first.
	List(ctx context.Context, userID uuid.UUID) ([]model.Plan, error)
	// Get returns a plan with its events ordered by index.
	Get(ctx context.Context, userID, planID uuid.UUID) (*model.Plan, error)
	// Update applies a partial update. Patches touching structure or drafts only
	// apply to draft plans and fail with ErrPlanActive otherwise.
	Update(ctx context.Context, userID, planID uuid.UUID, p model.PlanPatch) (*model.Plan, error)
	// Activate stores the events and marks the plan active in one transaction.
	Activate(ctx context.Context, userID, planID uuid.UUID, events []model.DeliveryEvent) (*model.Plan, error)
	// UpdateEventMessage sets the message of one event of the user's plan.
	UpdateEventMessage(ctx context.Context, userID, eventID uuid.UUID, message string) (model.DeliveryEvent, error)
}
