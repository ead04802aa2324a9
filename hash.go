package hashio

import (
	"bytes"
	"database/sql/driver"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// Size is the length in bytes of a digest.
const Size = 32

// Hash is either absent (the zero value, None)
// or the SHA3-256 digest of some byte content.
// It is comparable and may be used as a map key.
type Hash struct {
	sum   [Size]byte
	valid bool
}

// None is the absent hash.
var None Hash

// HashBytes computes the SHA3-256 digest of data.
func HashBytes(data []byte) Hash {
	return Hash{sum: sha3.Sum256(data), valid: true}
}

// HashString computes the SHA3-256 digest of the bytes of s.
func HashString(s string) Hash {
	return HashBytes([]byte(s))
}

// HashWith chains two hashes into one:
// the digest of h's bytes followed by other's bytes.
// An absent hash contributes no bytes.
func (h Hash) HashWith(other Hash) Hash {
	buf := make([]byte, 0, 2*Size)
	buf = append(buf, h.Bytes()...)
	buf = append(buf, other.Bytes()...)
	return HashBytes(buf)
}

// ContentHash makes Hash itself Hashable.
func (h Hash) ContentHash() Hash {
	return HashBytes(h.Bytes())
}

// IsNone tells whether h is the absent hash.
func (h Hash) IsNone() bool {
	return !h.valid
}

// Bytes returns a copy of the digest, or nil for None.
func (h Hash) Bytes() []byte {
	if !h.valid {
		return nil
	}
	out := make([]byte, Size)
	copy(out, h.sum[:])
	return out
}

// String returns the digest as 64 lowercase hex characters,
// or the empty string for None.
func (h Hash) String() string {
	if !h.valid {
		return ""
	}
	return hex.EncodeToString(h.sum[:])
}

// Compare orders hashes: None first, then byte-lexicographically.
func (h Hash) Compare(other Hash) int {
	switch {
	case !h.valid && !other.valid:
		return 0
	case !h.valid:
		return -1
	case !other.valid:
		return 1
	}
	return bytes.Compare(h.sum[:], other.sum[:])
}

func (h Hash) Less(other Hash) bool {
	return h.Compare(other) < 0
}

// Equal tells whether h and other are the same hash.
func (h Hash) Equal(other Hash) bool {
	return h == other
}

// FromBytes produces the Hash whose digest is b,
// which must be exactly Size bytes long.
func FromBytes(b []byte) (Hash, error) {
	if len(b) != Size {
		return None, fmt.Errorf("hash has %d bytes, want %d", len(b), Size)
	}
	var h Hash
	copy(h.sum[:], b)
	h.valid = true
	return h, nil
}

// FromHex parses the output of Hash.String.
// The empty string parses as None.
func FromHex(s string) (Hash, error) {
	if s == "" {
		return None, nil
	}
	if len(s) != 2*Size {
		return None, fmt.Errorf("hash %q has wrong length", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return None, errors.Wrapf(err, "decoding hash %q", s)
	}
	return FromBytes(b)
}

// Value implements driver.Valuer.
func (h Hash) Value() (driver.Value, error) {
	if !h.valid {
		return []byte{}, nil
	}
	return h.Bytes(), nil
}

// Scan implements sql.Scanner.
func (h *Hash) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*h = None
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Hash", src)
	}
	if len(b) == 0 {
		*h = None
		return nil
	}
	parsed, err := FromBytes(b)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
