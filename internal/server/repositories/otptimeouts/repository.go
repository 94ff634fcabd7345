package otptimeouts

import (
	"context"

	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

// Repository is the recovery-challenge half of the account store.
// A user has at most one challenge.
type Repository interface {
	Upsert(ctx context.Context, otp *models.OTPTimeout) error
	Reissue(ctx context.Context, cmd models.ReissueOTP) error
	GetByUserID(ctx context.Context, userID string) (*models.OTPTimeout, error)
	MarkVerified(ctx context.Context, cmd models.MarkOTPVerified) error
	ResetVerification(ctx context.Context, cmd models.ResetOTPVerification) error
}
