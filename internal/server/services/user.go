// Package services contains server-side business logic. This file implements
// UserService, the credential store: account creation, lookup, password
// verification and password rotation.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cookieauth/internal/common"
	"github.com/dmitrijs2005/cookieauth/internal/cryptox"
	"github.com/dmitrijs2005/cookieauth/internal/dbx"
	"github.com/dmitrijs2005/cookieauth/internal/server/config"
	"github.com/dmitrijs2005/cookieauth/internal/server/models"
	"github.com/dmitrijs2005/cookieauth/internal/server/repositories/repomanager"
)

// verifyHash checks a password against a PHC-encoded argon2id hash.
var verifyHash = cryptox.VerifyPassword

// UserService provides credential operations:
//   - Create: register a user with an argon2id-hashed password
//   - FindByEmail / FindByID: lookups, common.ErrorNotFound when absent
//   - VerifyPassword / Authenticate: constant-time password checks
//   - UpdatePassword: rotate the hash after checking the previous password
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	params      cryptox.Argon2Params
	// dummyHash is verified against when the email is unknown.
	dummyHash string
}

// NewUserService constructs a UserService using repositories and server config.
// Zero argon2 settings fall back to cryptox.DefaultArgon2Params.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	params := cryptox.DefaultArgon2Params()
	if cfg.Argon2Memory != 0 && cfg.Argon2Time != 0 && cfg.Argon2Threads != 0 {
		params = cfg.PasswordParams()
	}
	salt := make([]byte, params.SaltLength)
	return &UserService{
		db:          db,
		repomanager: m,
		params:      params,
		dummyHash:   cryptox.HashPasswordWithSalt([]byte("unknown-user"), salt, params),
	}
}

// Create hashes password and stores a new user. An existing email yields
// common.ErrorConflict; any storage or hashing failure is wrapped in
// common.ErrorPersistence.
func (s *UserService) Create(ctx context.Context, email, password string) (*models.User, error) {
	if _, err := s.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email %q: %w", email, common.ErrorConflict)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("%w: %v", common.ErrorPersistence, err)
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorPersistence, err)
	}

	user := &models.User{Email: email, PasswordHash: hash}
	var created *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repomanager.Users(tx).Create(ctx, user)
		if err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorPersistence, err)
	}
	return created, nil
}

// FindByEmail returns the user with exactly this email.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetUserByEmail(ctx, email)
}

// FindByID returns the user with this id.
func (s *UserService) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repomanager.Users(s.db).GetUserByID(ctx, id)
}

// VerifyPassword reports whether raw matches the stored hash of user.
func (s *UserService) VerifyPassword(user *models.User, raw string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}
	ok, err := verifyHash([]byte(raw), user.PasswordHash)
	return err == nil && ok
}

// Authenticate looks the user up by email and checks the password. Both an
// unknown email and a wrong password yield common.ErrorUnauthorized, and
// both run one hash comparison.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _ = verifyHash([]byte(password), s.dummyHash)
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if !s.VerifyPassword(user, password) {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

// UpdatePassword replaces the password of user after checking previous.
// A wrong previous password yields common.ErrorPreconditionFailed, a vanished
// row common.ErrorNotFound, and other failures common.ErrorPersistence.
// On success user.PasswordHash holds the new hash.
func (s *UserService) UpdatePassword(ctx context.Context, user *models.User, previous, next string) error {
	if !s.VerifyPassword(user, previous) {
		return common.ErrorPreconditionFailed
	}

	hash, err := s.hashPassword(next)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorPersistence, err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).UpdatePasswordHash(ctx, user.ID, hash)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", common.ErrorPersistence, err)
	}

	user.PasswordHash = hash
	return nil
}

// --- helpers below ---

func (s *UserService) hashPassword(raw string) (string, error) {
	return cryptox.HashPassword([]byte(raw), s.params)
}
