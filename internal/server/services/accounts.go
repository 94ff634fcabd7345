// Package services contains server-side business logic. AccountService runs
// registration, login and the OTP based password recovery flow; AccessGuard
// resolves bearer tokens for protected routes; UploadService proxies image
// uploads to object storage.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/auth"
	"github.com/dmitrijs2005/accountkeeper/internal/server/config"
	"github.com/dmitrijs2005/accountkeeper/internal/server/mailer"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
)

const (
	RecoverySubject      = "[ACCOUNT RECOVERY]: Confirmation of Account Ownership"
	recoveryBodyTemplate = "Hello %s,\n\nKindly use the OTP code (%s) to recover your account"
)

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

type TokenIssuer interface {
	Sign(userID, email string) (string, error)
	Decode(token string) (*auth.Claims, error)
}

type CodeGenerator interface {
	Generate() (string, error)
}

type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// EventRecorder counts flow outcomes (metrics.Collector in production).
type EventRecorder interface {
	Record(event, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) Record(string, string) {}

// Registration is the input of AccountService.Register.
type Registration struct {
	FirstName    string
	LastName     string
	PrimaryEmail string
	Password     string
}

// AccountService implements the account state machine. It is stateless
// beyond its collaborators and safe for concurrent use.
type AccountService struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	hasher          PasswordHasher
	tokens          TokenIssuer
	otp             CodeGenerator
	mailer          Mailer
	logger          logging.Logger
	events          EventRecorder
	otpTimeout      time.Duration
	strictExpiry    bool
	requireVerified bool
	now             func() time.Time
}

// AccountOption customises an AccountService.
type AccountOption func(*AccountService)

// WithEvents attaches an outcome recorder.
func WithEvents(r EventRecorder) AccountOption {
	return func(s *AccountService) { s.events = r }
}

// WithNow replaces time.Now, for tests.
func WithNow(now func() time.Time) AccountOption {
	return func(s *AccountService) { s.now = now }
}

// NewAccountService wires an AccountService from its collaborators and config.
func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	hasher PasswordHasher, tokens TokenIssuer, otp CodeGenerator, mail Mailer,
	logger logging.Logger, opts ...AccountOption) *AccountService {

	s := &AccountService{
		db:              db,
		repomanager:     m,
		hasher:          hasher,
		tokens:          tokens,
		otp:             otp,
		mailer:          mail,
		logger:          logger.With("module", "accounts"),
		events:          noopRecorder{},
		otpTimeout:      cfg.OTPTimeout,
		strictExpiry:    cfg.OTPStrictExpiry,
		requireVerified: cfg.RequireVerifiedOTP,
		now:             time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register creates a new account. It fails with common.ErrorConflict when the
// email is taken. No token is issued.
func (s *AccountService) Register(ctx context.Context, r Registration) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	_, err := repo.GetByEmail(ctx, r.PrimaryEmail)
	switch {
	case err == nil:
		s.events.Record("register", "conflict")
		return nil, common.ErrorConflict
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error looking up user: %w", err)
	}

	hash, err := s.hasher.Hash(r.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	now := s.now().UTC()
	user := &models.User{
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		PrimaryEmail: r.PrimaryEmail,
		PasswordHash: hash,
		CreatedAt:    now,
		ModifiedAt:   now,
	}

	u, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			s.events.Record("register", "conflict")
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.events.Record("register", "success")
	s.logger.Info(ctx, "account registered", "user_id", u.ID)
	return u, nil
}

// Login verifies credentials and returns a session token. Unknown emails
// fail with common.ErrorNotFound, wrong passwords with common.ErrorUnauthorized.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.events.Record("login", "not_found")
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("error looking up user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.events.Record("login", "unauthorized")
		s.logger.Warn(ctx, "login rejected", "user_id", user.ID)
		return "", common.ErrorUnauthorized
	}

	token, err := s.tokens.Sign(user.ID, user.PrimaryEmail)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}

	s.events.Record("login", "success")
	return token, nil
}

// RecoverInitiate issues a fresh challenge, creating it if absent, and
// emails the code. The bool reports delivery.
func (s *AccountService) RecoverInitiate(ctx context.Context, email string) (bool, error) {
	return s.issueOTP(ctx, email, "recover_initiate", func(ctx context.Context, user *models.User, code string, now time.Time) error {
		return s.repomanager.OTPTimeouts(s.db).Upsert(ctx, &models.OTPTimeout{
			UserID:     user.ID,
			Code:       code,
			CreatedAt:  now,
			ModifiedAt: now,
		})
	})
}

// RecoverResend replaces the code of an existing challenge and emails it.
// It fails with common.ErrorNotFound when no challenge was ever issued.
func (s *AccountService) RecoverResend(ctx context.Context, email string) (bool, error) {
	return s.issueOTP(ctx, email, "recover_resend", func(ctx context.Context, user *models.User, code string, now time.Time) error {
		return s.repomanager.OTPTimeouts(s.db).Reissue(ctx, models.ReissueOTP{
			UserID:     user.ID,
			Code:       code,
			ModifiedAt: now,
		})
	})
}

type storeOTP func(ctx context.Context, user *models.User, code string, now time.Time) error

func (s *AccountService) issueOTP(ctx context.Context, email, event string, store storeOTP) (bool, error) {
	user, err := s.getUser(ctx, email)
	if err != nil {
		s.events.Record(event, outcome(err))
		return false, err
	}

	code, err := s.otp.Generate()
	if err != nil {
		return false, fmt.Errorf("error generating otp: %w", err)
	}

	if err := store(ctx, user, code, s.now().UTC()); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.events.Record(event, "not_found")
			return false, common.ErrOTPNotFound
		}
		return false, fmt.Errorf("error storing otp: %w", err)
	}

	msg := mailer.Message{
		To:      user.PrimaryEmail,
		Subject: RecoverySubject,
		Text:    fmt.Sprintf(recoveryBodyTemplate, user.FirstName, code),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.events.Record(event, "send_failed")
		s.logger.Error(ctx, "recovery email not delivered", "user_id", user.ID, "error", err)
		return false, nil
	}

	s.events.Record(event, "success")
	s.logger.Info(ctx, "recovery code sent", "user_id", user.ID)
	return true, nil
}

// VerifyOTP checks code against the user's challenge. A wrong or expired
// code returns false and leaves the challenge untouched.
func (s *AccountService) VerifyOTP(ctx context.Context, email, code string) (bool, error) {
	user, err := s.getUser(ctx, email)
	if err != nil {
		s.events.Record("verify_otp", outcome(err))
		return false, err
	}

	repo := s.repomanager.OTPTimeouts(s.db)
	otp, err := repo.GetByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.events.Record("verify_otp", "not_found")
			return false, common.ErrOTPNotFound
		}
		return false, fmt.Errorf("error loading otp: %w", err)
	}

	now := s.now().UTC()
	expiry := otp.ModifiedAt.Add(s.otpTimeout)

	if s.expired(now, expiry) {
		s.events.Record("verify_otp", "expired")
		return false, nil
	}
	if code != otp.Code {
		s.events.Record("verify_otp", "mismatch")
		return false, nil
	}

	if err := repo.MarkVerified(ctx, models.MarkOTPVerified{UserID: user.ID, ModifiedAt: now}); err != nil {
		return false, fmt.Errorf("error marking otp verified: %w", err)
	}

	s.events.Record("verify_otp", "success")
	return true, nil
}

// expired compares clock times only unless strict expiry is configured,
// so a challenge issued just before midnight reads as expired right after it.
func (s *AccountService) expired(now, expiry time.Time) bool {
	if s.strictExpiry {
		return now.After(expiry)
	}
	return timeOfDay(now) > timeOfDay(expiry.UTC())
}

func timeOfDay(t time.Time) time.Duration {
	h, m, sec := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second + time.Duration(t.Nanosecond())
}

// CompleteRecovery sets a new password. Unless RequireVerifiedOTP is set it
// does not look at the challenge at all; with it, the challenge must be
// verified and is reset in the same transaction as the password change.
func (s *AccountService) CompleteRecovery(ctx context.Context, email, newPassword string) error {
	user, err := s.getUser(ctx, email)
	if err != nil {
		s.events.Record("recover_complete", outcome(err))
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	now := s.now().UTC()
	cmd := models.UpdatePassword{Email: user.PrimaryEmail, PasswordHash: hash, ModifiedAt: now}

	if !s.requireVerified {
		if err := s.repomanager.Users(s.db).UpdatePassword(ctx, cmd); err != nil {
			return s.completeFailed(err)
		}
		s.events.Record("recover_complete", "success")
		s.logger.Info(ctx, "password recovered", "user_id", user.ID)
		return nil
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		otps := s.repomanager.OTPTimeouts(tx)

		otp, err := otps.GetByUserID(ctx, user.ID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrOTPNotVerified
			}
			return err
		}
		if !otp.Verified {
			return common.ErrOTPNotVerified
		}

		if err := s.repomanager.Users(tx).UpdatePassword(ctx, cmd); err != nil {
			return err
		}
		return otps.ResetVerification(ctx, models.ResetOTPVerification{UserID: user.ID, ModifiedAt: now})
	})
	if err != nil {
		if errors.Is(err, common.ErrOTPNotVerified) {
			s.events.Record("recover_complete", "not_verified")
			return common.ErrOTPNotVerified
		}
		return s.completeFailed(err)
	}

	s.events.Record("recover_complete", "success")
	s.logger.Info(ctx, "password recovered", "user_id", user.ID)
	return nil
}

func (s *AccountService) completeFailed(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		s.events.Record("recover_complete", "not_found")
		return common.ErrorNotFound
	}
	return fmt.Errorf("error updating password: %w", err)
}

func (s *AccountService) getUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error looking up user: %w", err)
	}
	return user, nil
}

func outcome(err error) string {
	if errors.Is(err, common.ErrorNotFound) {
		return "not_found"
	}
	return "error"
}
