package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
)

// Tier is the privilege a route requires.
type Tier int

const (
	TierAuthenticated Tier = iota
	TierActive
	TierAdmin
)

func (t Tier) String() string {
	switch t {
	case TierAuthenticated:
		return "authenticated"
	case TierActive:
		return "active"
	case TierAdmin:
		return "admin"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// AccessGuard turns a bearer token into a user, re-reading the store on
// every call so deleted accounts lose access even with a live token.
// Each step takes the previous step's user and returns it, or an error.
type AccessGuard struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      TokenIssuer
}

func NewAccessGuard(db *sql.DB, m repomanager.RepositoryManager, tokens TokenIssuer) *AccessGuard {
	return &AccessGuard{db: db, repomanager: m, tokens: tokens}
}

// Authenticate decodes token and loads its user. Any decode failure is
// common.ErrorForbidden; a vanished user is common.ErrorNotFound.
func (g *AccessGuard) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := g.tokens.Decode(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorForbidden, err)
	}

	user, err := g.repomanager.Users(g.db).GetByEmail(ctx, claims.UserEmail)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error looking up user: %w", err)
	}

	return user, nil
}

// RequireActive rejects accounts whose email is not verified.
func (g *AccessGuard) RequireActive(user *models.User) (*models.User, error) {
	if !user.EmailVerified {
		return nil, common.ErrorInactive
	}
	return user, nil
}

// RequireAdmin rejects non-admin accounts.
func (g *AccessGuard) RequireAdmin(user *models.User) (*models.User, error) {
	if !user.IsAdmin {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

// Resolve runs the steps needed for tier in order: authenticate, then
// active, then admin.
func (g *AccessGuard) Resolve(ctx context.Context, token string, tier Tier) (*models.User, error) {
	user, err := g.Authenticate(ctx, token)
	if err != nil || tier == TierAuthenticated {
		return user, err
	}

	if user, err = g.RequireActive(user); err != nil || tier == TierActive {
		return user, err
	}

	return g.RequireAdmin(user)
}
