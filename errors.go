package archive

import (
	"errors"
	"fmt"
)

// Sentinel errors. All engine failures wrap one of these or carry a cause
// inside an [*Error]; match with errors.Is.
var (
	// ErrPasswordRequired is returned when an encrypted entry is read
	// without a password.
	ErrPasswordRequired = errors.New("archive: password required")

	// ErrWrongPassword is returned when decryption fails its password
	// verifier or authentication check.
	ErrWrongPassword = errors.New("archive: wrong password")

	// ErrChecksum is returned when decompressed content fails its CRC.
	ErrChecksum = errors.New("archive: checksum mismatch")
)

// Kind classifies an engine failure for the dispatch layer.
type Kind uint8

const (
	// InvalidConfiguration: a write option is out of range. Reported
	// before any entry is processed.
	InvalidConfiguration Kind = iota + 1

	// EncodingFailure: content normalization or compression failed for a
	// specific entry.
	EncodingFailure

	// EncryptionFailure: sealing an entry payload failed.
	EncryptionFailure

	// DecryptionFailure: a password is missing or wrong, or an encrypted
	// payload fails authentication.
	DecryptionFailure

	// StructuralCorruption: the central directory or end record is
	// missing, truncated or inconsistent.
	StructuralCorruption

	// UnsupportedMethod: an entry declares a compression method the
	// engine does not implement.
	UnsupportedMethod
)

func (k Kind) String() string {
	switch k {
	case InvalidConfiguration:
		return "invalid configuration"
	case EncodingFailure:
		return "encoding failure"
	case EncryptionFailure:
		return "encryption failure"
	case DecryptionFailure:
		return "decryption failure"
	case StructuralCorruption:
		return "structural corruption"
	case UnsupportedMethod:
		return "unsupported method"
	default:
		return "unknown"
	}
}

// Error is a structured engine failure. Entry names the offending archive
// member when the failure is entry-scoped.
type Error struct {
	Kind  Kind
	Entry string
	Err   error
}

func (e *Error) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("archive: %s: entry %q: %v", e.Kind, e.Entry, e.Err)
	}
	return fmt.Sprintf("archive: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match a bare &Error{Kind: k} against any error of that
// kind regardless of entry or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Entry == "" || t.Entry == e.Entry)
}

func newError(kind Kind, entry string, err error) *Error {
	return &Error{Kind: kind, Entry: entry, Err: err}
}

func configErrorf(format string, args ...any) *Error {
	return &Error{Kind: InvalidConfiguration, Err: fmt.Errorf(format, args...)}
}
