// Package users declares and implements persistence for user rows.
package users

import (
	"context"

	"github.com/dmitrijs2005/cookieauth/internal/server/models"
)

// Repository is the storage contract of the credential store.
type Repository interface {
	// Create inserts user and fills in ID and timestamps. A duplicate email
	// yields common.ErrorConflict.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetUserByEmail matches the email exactly. Absence yields common.ErrorNotFound.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID returns common.ErrorNotFound when no row has that id.
	GetUserByID(ctx context.Context, id int64) (*models.User, error)

	// UpdatePasswordHash replaces the stored hash and bumps updated_at.
	// A missing row yields common.ErrorNotFound.
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}
