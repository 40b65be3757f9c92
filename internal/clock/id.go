package clock

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NewJobID creates a new unique job identifier.
// Format: job-<timestamp>-<random>, e.g. job-1701432000-a1b2c3d4.
// The prefix-plus-random shape is kept from the job ID scheme this was
// grounded on; only the call site moved.
func NewJobID(c Clock) string {
	ts := c.Now().Unix()
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		return fmt.Sprintf("job-%d", ts)
	}
	return fmt.Sprintf("job-%d-%s", ts, hex.EncodeToString(random))
}

// NewSegmentID mints an identifier for a single extracted segment. Segment
// identifiers don't need to be human-legible the way job IDs do, so they
// are plain UUIDs.
func NewSegmentID() string {
	return uuid.NewString()
}

// Fingerprint returns a stable identifier for an idempotent model request,
// per spec: hash of (segment checksum, language, mode, prompt template
// version, model identifier). uuid.NewSHA1 over a fixed namespace gives a
// stable, collision-resistant ID from those fields without pulling in a
// separate hashing library.
var fingerprintNamespace = uuid.MustParse("6f8f7e3a-0a7a-4e2a-9e4f-7a2f5f0d6b21")

func Fingerprint(segmentChecksum, language, mode, templateVersion, modelIdentifier string) string {
	name := segmentChecksum + "|" + language + "|" + mode + "|" + templateVersion + "|" + modelIdentifier
	return uuid.NewSHA1(fingerprintNamespace, []byte(name)).String()
}
