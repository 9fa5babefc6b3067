package mint

import (
	"crypto/sha256"
	"errors"
	"math/bits"
	"regexp"
)

// Reason tells why a solution was discarded.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonMalformed        Reason = "malformed"
	ReasonTampered         Reason = "tampered"
	ReasonExpired          Reason = "expired"
	ReasonForeign          Reason = "foreign"
	ReasonAlgorithm        Reason = "algorithm"
	ReasonDuplicate        Reason = "duplicate"
	ReasonInsufficientWork Reason = "insufficient_work"
)

var ErrMalformed = errors.New("mint: malformed solution")

var solutionPattern = regexp.MustCompile(`^H:([0-9]+):([0-9]+):([^:/]+)/([0-9]+):([^:]+):([^:]+):([^:]+)$`)

// Solution holds the fields of a solution string as they appear on the wire.
// Numeric fields are kept verbatim since the nonce signs their text.
type Solution struct {
	Difficulty string
	ExpireAt   string
	CommentID  string
	Index      string
	Nonce      string
	Algorithm  string
	Proof      string
}

func ParseSolution(s string) (Solution, error) {
	m := solutionPattern.FindStringSubmatch(s)
	if m == nil {
		return Solution{}, ErrMalformed
	}
	return Solution{
		Difficulty: m[1],
		ExpireAt:   m[2],
		CommentID:  m[3],
		Index:      m[4],
		Nonce:      m[5],
		Algorithm:  m[6],
		Proof:      m[7],
	}, nil
}

// LeadingZeroBits counts the zero bits at the start of digest, capped at 255.
func LeadingZeroBits(digest []byte) uint8 {
	count := 0
	for _, b := range digest {
		n := bits.LeadingZeros8(b)
		count += n
		if n < 8 || count >= 255 {
			break
		}
	}
	if count > 255 {
		count = 255
	}
	return uint8(count)
}

// HasWork reports whether SHA-256(solution) has at least difficulty leading
// zero bits.
func HasWork(solution string, difficulty uint8) bool {
	sum := sha256.Sum256([]byte(solution))
	return LeadingZeroBits(sum[:]) >= difficulty
}
