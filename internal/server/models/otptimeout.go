package models

import "time"

// OTPTimeout is the single outstanding recovery challenge of a user.
// ModifiedAt is the issuance instant and anchors expiry.
type OTPTimeout struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Code       string    `db:"otp_code"`
	Verified   bool      `db:"otp_verified"`
	CreatedAt  time.Time `db:"created_at"`
	ModifiedAt time.Time `db:"modified_at"`
}

// ReissueOTP replaces the code of an existing challenge. The challenge
// becomes unverified again.
type ReissueOTP struct {
	UserID     string
	Code       string
	ModifiedAt time.Time
}

// MarkOTPVerified records a successful verification.
type MarkOTPVerified struct {
	UserID     string
	ModifiedAt time.Time
}

// ResetOTPVerification clears the verified flag once a recovery is consumed.
type ResetOTPVerification struct {
	UserID     string
	ModifiedAt time.Time
}
