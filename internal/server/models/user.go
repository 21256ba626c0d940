// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered account. PasswordHash holds the argon2id PHC string and is
// never serialized.
type User struct {
	ID           int64     `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
