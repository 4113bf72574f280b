// Package otp generates one-time numeric ride codes from a cryptographically
// strong random source. A predictable code would let anyone who sees the
// ride offer start someone else's trip.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
)

// Length is the number of digits in a ride code.
const Length = 6

const digits = "0123456789"

// Generate returns a random numeric code of Length digits.
func Generate() (string, error) {
	code := make([]byte, Length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[n.Int64()]
	}
	return string(code), nil
}

// Matches compares a supplied code against the stored one in constant time.
func Matches(stored, supplied string) bool {
	if len(stored) == 0 || len(stored) != len(supplied) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}
