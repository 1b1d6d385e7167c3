package token

import (
	"crypto/rand"
	"fmt"
)

const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Length gives roughly 190 bits of entropy, enough for the token to act as a
// bearer credential on the public endpoint.
const Length = 32

// 248 is the largest multiple of 62 below 256; bytes at or above it are
// rejected to keep the distribution uniform.
const rejectAbove = 248

// Generate returns a random Base62 token of Length characters.
func Generate() (string, error) {
	out := make([]byte, 0, Length)
	buf := make([]byte, Length*2)
	for len(out) < Length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if b >= rejectAbove {
				continue
			}
			out = append(out, charset[int(b)%len(charset)])
			if len(out) == Length {
				break
			}
		}
	}
	return string(out), nil
}

// LooksValid rejects strings that could never have been issued, so obvious
// garbage never reaches the store.
func LooksValid(s string) bool {
	if len(s) == 0 || len(s) > 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}
