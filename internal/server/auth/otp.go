package auth

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	DefaultOTPDigits = 6
	maxOTPDigits     = 18
)

// OTPGenerator produces fixed-length numeric codes, zero padded, uniformly
// drawn from a cryptographic source.
type OTPGenerator struct {
	digits int
	rand   io.Reader
}

func NewOTPGenerator(digits int) *OTPGenerator {
	if digits <= 0 {
		digits = DefaultOTPDigits
	}
	if digits > maxOTPDigits {
		digits = maxOTPDigits
	}
	return &OTPGenerator{digits: digits, rand: rand.Reader}
}

func (g *OTPGenerator) Generate() (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(g.digits)), nil)
	n, err := rand.Int(g.rand, max)
	if err != nil {
		return "", fmt.Errorf("otp: %w", err)
	}
	return fmt.Sprintf("%0*d", g.digits, n.Int64()), nil
}
