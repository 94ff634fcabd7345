package otptimeouts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert creates the user's challenge or overwrites the existing one in a
// single statement, so concurrent recoveries never produce two rows.
func (r *PostgresRepository) Upsert(ctx context.Context, otp *models.OTPTimeout) error {
	if otp.ID == "" {
		otp.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO otp_timeouts (id, user_id, otp_code, otp_verified, created_at, modified_at)
		 VALUES ($1, $2, $3, FALSE, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE
		 SET otp_code = EXCLUDED.otp_code, otp_verified = FALSE, modified_at = EXCLUDED.modified_at
		 `

	_, err := r.db.ExecContext(ctx, query, otp.ID, otp.UserID, otp.Code, otp.CreatedAt, otp.ModifiedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	otp.Verified = false
	return nil
}

// Reissue replaces the code of an existing challenge and fails with
// common.ErrorNotFound when the user has none.
func (r *PostgresRepository) Reissue(ctx context.Context, cmd models.ReissueOTP) error {
	query :=
		`UPDATE otp_timeouts SET otp_code = $1, otp_verified = FALSE, modified_at = $2
		 WHERE user_id = $3
		 `

	return r.execOne(ctx, query, cmd.Code, cmd.ModifiedAt, cmd.UserID)
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*models.OTPTimeout, error) {
	query :=
		`SELECT id, user_id, otp_code, otp_verified, created_at, modified_at
		 FROM otp_timeouts
		 WHERE user_id = $1
		 `

	otp := &models.OTPTimeout{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&otp.ID, &otp.UserID, &otp.Code, &otp.Verified, &otp.CreatedAt, &otp.ModifiedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return otp, nil
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, cmd models.MarkOTPVerified) error {
	query :=
		`UPDATE otp_timeouts SET otp_verified = TRUE, modified_at = $1
		 WHERE user_id = $2
		 `

	return r.execOne(ctx, query, cmd.ModifiedAt, cmd.UserID)
}

func (r *PostgresRepository) ResetVerification(ctx context.Context, cmd models.ResetOTPVerification) error {
	query :=
		`UPDATE otp_timeouts SET otp_verified = FALSE, modified_at = $1
		 WHERE user_id = $2
		 `

	return r.execOne(ctx, query, cmd.ModifiedAt, cmd.UserID)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
