package service

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

var otpMax = big.NewInt(1000000)

// generateOTP returns a six-digit one-time code and its bcrypt hash. Only
// the hash is persisted; the plaintext is surfaced once, at raise time.
func generateOTP() (code, hash string, err error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", "", fmt.Errorf("generate otp: %w", err)
	}
	code = fmt.Sprintf("%06d", n.Int64())

	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash otp: %w", err)
	}
	return code, string(h), nil
}

// verifyOTP reports whether code matches the stored hash.
func verifyOTP(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
