package hashio

import (
	"bytes"
	"context"
	"io"

	"github.com/pkg/errors"
)

var (
	stringTypeHash = HashString("String")
	bytesTypeHash  = HashString("Bytes")
)

// String is the Codec for text stored as a value of its own:
// a length-prefixed UTF-8 record.
var String Codec[string] = textCodec{}

// Bytes is the Codec for opaque byte strings stored as values of their own.
var Bytes Codec[[]byte] = bytesCodec{}

type textCodec struct{}

func (textCodec) TypeHash() Hash { return stringTypeHash }

func (textCodec) Encode(w *bytes.Buffer, v string) error {
	return WriteString(w, v)
}

func (textCodec) Decode(_ context.Context, _ *Store, _ Hash, r *bytes.Reader) (string, error) {
	v, err := ReadString(r)
	if err != nil {
		return "", err
	}
	return v, checkTrailing(r)
}

func (textCodec) PutChildren(context.Context, *Store, string) error { return nil }

type bytesCodec struct{}

func (bytesCodec) TypeHash() Hash { return bytesTypeHash }

func (bytesCodec) Encode(w *bytes.Buffer, v []byte) error {
	return WriteBytes(w, v)
}

func (bytesCodec) Decode(_ context.Context, _ *Store, _ Hash, r *bytes.Reader) ([]byte, error) {
	v, err := ReadBytes(r)
	if err != nil {
		return nil, err
	}
	return v, checkTrailing(r)
}

func (bytesCodec) PutChildren(context.Context, *Store, []byte) error { return nil }

// checkTrailing rejects records with bytes left over after decoding.
func checkTrailing(r io.Reader) error {
	var buf [1]byte
	n, _ := r.Read(buf[:])
	if n > 0 {
		return &ParseError{Err: errors.New("trailing bytes after record")}
	}
	return nil
}
