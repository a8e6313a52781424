package types

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// BlobID is a Git-style SHA-1 content hash (20 bytes).
type BlobID [20]byte

// ComputeBlobID computes SHA-1("blob {len}\0{content}"), the id Git would give
// the content.
func ComputeBlobID(content []byte) BlobID {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)

	var id BlobID
	copy(id[:], h.Sum(nil))
	return id
}

func (id BlobID) String() string {
	return hex.EncodeToString(id[:])
}

// ParseBlobID parses a 40-character hex string.
func ParseBlobID(s string) (BlobID, error) {
	var id BlobID
	if len(s) != 2*len(id) {
		return id, fmt.Errorf("invalid blob ID length: expected %d, got %d", 2*len(id), len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return BlobID{}, fmt.Errorf("invalid blob ID: %w", err)
	}
	return id, nil
}

func (id BlobID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *BlobID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseBlobID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
