package hashio

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is the error returned
// when a Backend tries to access a non-existent hash.
var ErrNotFound = errors.New("not found")

// Kind classifies the errors produced by this package.
type Kind int

const (
	KindUndefined Kind = iota
	KindIO
	KindVersion
	KindType
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindVersion:
		return "version"
	case KindType:
		return "type"
	case KindParse:
		return "parse"
	}
	return "undefined"
}

// IOError wraps a failure reading or writing a record.
type IOError struct {
	Op   string
	Hash Hash
	Err  error
}

func (e *IOError) Error() string {
	if e.Hash.IsNone() {
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Hash, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// VersionError reports a record whose version is below the supported minimum.
type VersionError struct {
	Version uint32
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("unsupported version: %d", e.Version)
}

// TypeError reports a record whose embedded type hash
// differs from the type hash of the type being decoded.
// Hash is the type hash found in the record.
type TypeError struct {
	Hash Hash
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("unexpected type: %s", e.Hash)
}

// ParseError reports malformed field bytes.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UndefinedError is the catch-all for unexpected conditions.
type UndefinedError struct {
	Msg string
}

func (e *UndefinedError) Error() string {
	return "undefined error: " + e.Msg
}

// KindOf reports the Kind of the first error in err's chain
// produced by this package.
func KindOf(err error) Kind {
	var (
		ioErr      *IOError
		versionErr *VersionError
		typeErr    *TypeError
		parseErr   *ParseError
	)
	switch {
	case errors.As(err, &versionErr):
		return KindVersion
	case errors.As(err, &typeErr):
		return KindType
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &ioErr):
		return KindIO
	}
	return KindUndefined
}
