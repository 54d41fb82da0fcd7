// Package reference generates the human-facing booking references printed on
// receipts and used in session URLs.
package reference

import (
	"strings"

	"github.com/google/uuid"
)

const (
	PrefixReservation = "RES"
	PrefixSession     = "PARK"

	suffixLength = 8
)

// New returns PREFIX-XXXXXXXX where X is upper-case hex. Uniqueness is
// enforced by the database; callers regenerate on a unique violation.
func New(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + strings.ToUpper(id[:suffixLength])
}

func HasPrefix(ref, prefix string) bool {
	return strings.HasPrefix(ref, prefix+"-") && len(ref) == len(prefix)+1+suffixLength
}
