package hashio

import (
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Scalar fields are encoded big-endian.
// Every reader turns a short read into a ParseError.

// Writer writes one scalar value.
type Writer[F any] func(io.Writer, F) error

// Reader reads one scalar value.
type Reader[F any] func(io.Reader) (F, error)

func readFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &ParseError{Err: io.ErrUnexpectedEOF}
		}
		return &IOError{Op: "reading record", Err: err}
	}
	return nil
}

func WriteU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func ReadU8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func WriteU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func WriteU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func WriteI64(w io.Writer, v int64) error {
	return WriteU64(w, uint64(v))
}

func ReadI64(r io.Reader) (int64, error) {
	v, err := ReadU64(r)
	return int64(v), err
}

func WriteBool(w io.Writer, v bool) error {
	if v {
		return WriteU8(w, 1)
	}
	return WriteU8(w, 0)
}

// ReadBool accepts only 0 and 1.
func ReadBool(r io.Reader) (bool, error) {
	b, err := ReadU8(r)
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, &ParseError{Err: errors.Errorf("invalid bool byte %d", b)}
}

// WriteBytes writes a u32 length prefix followed by b.
func WriteBytes(w io.Writer, b []byte) error {
	if err := WriteU32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// maxFieldLen bounds the length prefix of a single field,
// so a corrupt prefix cannot trigger a huge allocation.
const maxFieldLen = 1 << 28

func ReadBytes(r io.Reader) ([]byte, error) {
	n, err := ReadU32(r)
	if err != nil {
		return nil, err
	}
	if n > maxFieldLen {
		return nil, &ParseError{Err: errors.Errorf("field length %d too large", n)}
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if err := readFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteString writes s as length-prefixed UTF-8.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads length-prefixed text,
// rejecting invalid UTF-8 with a ParseError.
func ReadString(r io.Reader) (string, error) {
	b, err := ReadBytes(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", &ParseError{Err: errors.New("invalid utf-8 in text field")}
	}
	return string(b), nil
}

// WriteHash writes the 32 raw bytes of h.
// The absent hash is written as 32 zero bytes.
func WriteHash(w io.Writer, h Hash) error {
	_, err := w.Write(h.sum[:])
	return err
}

// ReadHash reads 32 raw bytes.
func ReadHash(r io.Reader) (Hash, error) {
	var buf [Size]byte
	if err := readFull(r, buf[:]); err != nil {
		return None, err
	}
	return Hash{sum: buf, valid: true}, nil
}

// ReadOptionalHash is ReadHash,
// except that 32 zero bytes read back as None.
func ReadOptionalHash(r io.Reader) (Hash, error) {
	h, err := ReadHash(r)
	if err != nil {
		return None, err
	}
	if h.sum == ([Size]byte{}) {
		return None, nil
	}
	return h, nil
}
