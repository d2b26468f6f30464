package repository

import (
	"context"

	"eviction-tracker/efiling/internal/policy/domain"
)

// Repository supplies extra filing policy modules.
type Repository interface {
	ListEnabled(ctx context.Context) ([]*domain.Policy, error)
}
