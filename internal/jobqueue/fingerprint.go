package jobqueue

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint is the 64-byte content hash identifying a job's semantic
// identity: two payloads describing "the same work" hash to the same
// fingerprint, regardless of row id. Enqueue relies on this for
// idempotence (spec invariant: two enqueues of the same payload produce
// exactly one row).
type Fingerprint [blake2b.Size]byte

// Hex renders the fingerprint for logging and the fingerprint column.
func (f Fingerprint) Hex() string {
	return fmt.Sprintf("%x", f[:])
}

// ComputeFingerprint derives the fingerprint for a payload: a
// domain-separated BLAKE2b-512 hash of the job's tag followed by the
// canonical byte encoding of its identifying fields. For both current
// tags, the identifying field is the feed id, encoded little-endian.
// Reordering or adding non-identifying fields never changes the result.
func ComputeFingerprint(p Payload) (Fingerprint, error) {
	h, err := blake2b.New512(nil)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("init blake2b: %w", err)
	}

	h.Write([]byte(p.Tag))

	var feedID int64
	switch p.Tag {
	case TagRefreshFeed:
		if p.RefreshFeed == nil {
			return Fingerprint{}, fmt.Errorf("refresh_feed payload missing fields")
		}
		feedID = p.RefreshFeed.FeedID
	case TagFetchFavicon:
		if p.FetchFavicon == nil {
			return Fingerprint{}, fmt.Errorf("fetch_favicon payload missing fields")
		}
		feedID = p.FetchFavicon.FeedID
	default:
		return Fingerprint{}, fmt.Errorf("unknown job payload tag %q", p.Tag)
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(feedID))
	h.Write(buf[:])

	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp, nil
}
