// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered account. PasswordHash never leaves the server:
// it is excluded from JSON so a User can be rendered directly in responses.
type User struct {
	ID            string    `db:"id" json:"id"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	PrimaryEmail  string    `db:"primary_email" json:"primary_email"`
	PasswordHash  string    `db:"password" json:"-"`
	EmailVerified bool      `db:"email_verified" json:"email_verified"`
	IsAdmin       bool      `db:"is_admin" json:"is_admin"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	ModifiedAt    time.Time `db:"modified_at" json:"modified_at"`
}

// UpdatePassword replaces the stored hash of the account with Email.
type UpdatePassword struct {
	Email        string
	PasswordHash string
	ModifiedAt   time.Time
}
