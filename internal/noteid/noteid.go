// Package noteid generates and validates the short identifiers used as note
// keys and mention tokens.
package noteid

import (
	"crypto/rand"
	"math/big"
)

// Length is the fixed identifier length.
const Length = 6

// Alphabet lists the characters an identifier may contain.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// Generate returns a fresh random identifier. Uniqueness is not guaranteed;
// callers retry when storage reports a duplicate key.
func Generate() string {
	buf := make([]byte, Length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			panic("noteid: read random: " + err.Error())
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf)
}

// IsValid reports whether s has the identifier length and alphabet.
func IsValid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !IsAlphabet(s[i]) {
			return false
		}
	}
	return true
}

// IsAlphabet reports whether c may appear in an identifier.
func IsAlphabet(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
