package models

import (
	"strings"

	"github.com/google/uuid"
)

const shortIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// ShortIDLength matches the ids already present in stored browser data.
const ShortIDLength = 9

// NewShortID returns a random 9-character base-36 id for users and
// appointments.
func NewShortID() string {
	raw := uuid.New()
	var b strings.Builder
	b.Grow(ShortIDLength)
	for i := 0; i < ShortIDLength; i++ {
		b.WriteByte(shortIDAlphabet[int(raw[i])%len(shortIDAlphabet)])
	}
	return b.String()
}
