package code

import (
	"crypto/rand"
	"fmt"
)

// Alphabet is the 62-character set codes are drawn from.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultLength is the code length used when callers pass a non-positive value.
const DefaultLength = 8

// Generate produces a random code of the requested length drawn from Alphabet.
// Each random byte is reduced modulo 62; the resulting bias (62 does not divide
// 256 evenly) is on the order of 2^-7 per character and is accepted, since the
// entropy per 8-character code still far exceeds guessability requirements.
// Collisions with existing codes are not checked; at 62^8 combinations the
// probability is negligible for this workload.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(out), nil
}
