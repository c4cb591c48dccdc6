package storage

import (
	"crypto/rand"
	"fmt"
)

const (
	codeLength   = 20
	codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewVerificationCode returns a fresh random code of fixed length. A new
// code is issued for every message from an unverified chat, so previous
// codes stop being valid as soon as the row is updated.
func NewVerificationCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
