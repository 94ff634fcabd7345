package client

import (
	"context"
	"time"
)

// User is the account as the server renders it.
type User struct {
	ID            string    `json:"id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	PrimaryEmail  string    `json:"primary_email"`
	EmailVerified bool      `json:"email_verified"`
	IsAdmin       bool      `json:"is_admin"`
	CreatedAt     time.Time `json:"created_at"`
	ModifiedAt    time.Time `json:"modified_at"`
}

type Registration struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	PrimaryEmail string `json:"primary_email"`
	Password     string `json:"password"`
}

type Client interface {
	Ping(ctx context.Context) error
	Register(ctx context.Context, r Registration) (*User, error)
	Login(ctx context.Context, email, password string) (string, error)
	RecoverInitiate(ctx context.Context, email string) (string, error)
	RecoverResend(ctx context.Context, email string) (string, error)
	VerifyOTP(ctx context.Context, email, code string) (string, error)
	CompleteRecovery(ctx context.Context, email, password string) (string, error)
	Me(ctx context.Context, token string) (*User, error)
	Upload(ctx context.Context, token, path string) (string, error)
}
