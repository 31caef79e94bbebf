package model

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// Commit is one tracked source revision.
type Commit struct {
	Hash       string    `json:"hash"`
	Timestamp  time.Time `json:"timestamp"`
	IsKeyframe bool      `json:"is_keyframe"`
}

// A keyframe commit is one whose test catalog and result set are treated as
// complete, so backward walks through history may stop there.

// Fixed v1-UUID node and clock sequence so that the same timestamp always
// derives the same revision identifier.
var revisionNode = [6]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab}

const revisionClockSeq = 0x1234

// Intervals of 100ns between the UUID epoch (1582-10-15) and the Unix epoch.
const gregorianToUnix = 122192928000000000

// RevisionID derives the stable identifier for a commit's timestamp. Raw
// results are keyed by this identifier rather than by the commit hash, and
// the derivation must be deterministic so results written by different
// processes correlate. The identifier is a time-based UUID with a fixed node
// and clock sequence.
func RevisionID(ts time.Time) string {
	t := uint64(ts.UnixNano()/100) + gregorianToUnix

	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], uint32(t))
	binary.BigEndian.PutUint16(u[4:6], uint16(t>>32))
	binary.BigEndian.PutUint16(u[6:8], uint16(t>>48)&0x0fff|0x1000)
	binary.BigEndian.PutUint16(u[8:10], revisionClockSeq&0x3fff|0x8000)
	copy(u[10:], revisionNode[:])
	return u.String()
}

// RevisionID returns the identifier derived from this commit's timestamp.
func (c Commit) RevisionID() string {
	return RevisionID(c.Timestamp)
}
