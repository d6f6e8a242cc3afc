// Package tokens generates the opaque identifiers used for organiser links,
// share links and guest-list access. Generation is pure; uniqueness is
// enforced by the storage layer's unique indexes, and an insert-time
// collision is treated as retryable by callers.
package tokens

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	// Short tokens and reference codes draw from uppercase + digits so they
	// survive being read over the phone.
	upperAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Guest-list tokens are long enough to be mixed-case.
	mixedAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	shortTokenLength     = 8
	guestListTokenLength = 32
	referenceCodeLength  = 6
)

// Token prefixes.
const (
	PrefixOrganiser = "ORG"
	PrefixShare     = "OCC"
)

// Generate returns "<PREFIX>-" followed by 8 characters drawn uniformly from
// the uppercase alphanumeric alphabet.
func Generate(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, randomString(upperAlphabet, shortTokenLength))
}

// GenerateGuestListToken returns a 32-character mixed-case alphanumeric token.
func GenerateGuestListToken() string {
	return randomString(mixedAlphabet, guestListTokenLength)
}

// GenerateReferenceCode returns the human-facing booking code in the form
// OCC-YY-XXXXXX, where YY is the two-digit year of now.
func GenerateReferenceCode(now time.Time) string {
	year := now.Format("06")
	return fmt.Sprintf("OCC-%s-%s", year, randomString(upperAlphabet, referenceCodeLength))
}

func randomString(alphabet string, length int) string {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the platform entropy source is
			// broken; there is nothing sensible to fall back to.
			panic(fmt.Sprintf("tokens: entropy source unavailable: %v", err))
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out)
}
