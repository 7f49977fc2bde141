package order

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// NumberGenerator produces candidate order numbers.
type NumberGenerator func(now time.Time) string

// GenerateNumber returns YYYYMMDDhhmmss-NNNNNN using the UTC clock and a
// random six-digit suffix.
func GenerateNumber(now time.Time) string {
	return fmt.Sprintf("%s-%06d", now.UTC().Format("20060102150405"), rand.IntN(1_000_000))
}
