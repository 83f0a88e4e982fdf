// Package codegen produces random short codes for links.
// Generators are safe for concurrent use.
package codegen

import (
	"crypto/rand"
	"errors"
)

const (
	// Alphabet is the set of characters a code is drawn from.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// DefaultLength is the length of generated codes.
	DefaultLength = 6

	// Largest multiple of len(Alphabet) that fits in a byte. Random bytes at or
	// above it are discarded so every character is equally likely.
	rejectAbove = 256 - 256%len(Alphabet)
)

// Generator generates short codes.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

type base62Generator struct{}

// NewBase62 returns a generator drawing uniformly from Alphabet.
func NewBase62() Generator {
	return base62Generator{}
}

// Generate returns a random code of the given length.
func (base62Generator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/4+1)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= rejectAbove {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}
