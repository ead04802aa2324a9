package hashio

import (
	"bytes"
	"io"
)

// Hashable is something that can produce a Hash representing its content.
type Hashable interface {
	ContentHash() Hash
}

// Typeable is something that can produce a Hash representing its type's shape:
// field types and the type hashes of its children,
// independent of any instance.
// It is embedded in stored records and checked on load.
type Typeable interface {
	TypeHash() Hash
}

// Hashtype is the capability required of anything stored in a Store.
type Hashtype interface {
	Hashable
	Typeable
}

// Writable is something that serializes itself canonically.
type Writable = io.WriterTo

// WritableHash is the default content hash of a Writable:
// the digest of its canonical serialization.
// It panics if w fails to write.
func WritableHash(w Writable) Hash {
	buf := new(bytes.Buffer)
	if _, err := w.WriteTo(buf); err != nil {
		panic(err)
	}
	return HashBytes(buf.Bytes())
}
