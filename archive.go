package archive

import (
	"io"
	"time"
)

// Method identifies how an entry payload is stored.
type Method uint16

const (
	MethodStore   Method = 0
	MethodDeflate Method = 8
)

func (m Method) String() string {
	switch m {
	case MethodStore:
		return "store"
	case MethodDeflate:
		return "deflate"
	default:
		return "unknown"
	}
}

// EncryptionStrength selects the AES key size used when a password is set.
type EncryptionStrength uint8

const (
	EncryptionAES128 EncryptionStrength = 1
	EncryptionAES192 EncryptionStrength = 2
	EncryptionAES256 EncryptionStrength = 3
)

// Content is one entry's byte source. The variants are [Text], [Bytes] and
// [Stream]; each is normalized to bytes at the writer's boundary before any
// format work happens.
type Content interface {
	payload() ([]byte, error)
}

// Text is string content, stored UTF-8 encoded.
type Text string

// Bytes is binary content, stored verbatim.
type Bytes []byte

// Stream is content drained from a reader when Write runs. The engine does
// not retain the reader beyond that call.
type Stream struct {
	R io.Reader
}

func (t Text) payload() ([]byte, error)  { return []byte(t), nil }
func (b Bytes) payload() ([]byte, error) { return b, nil }

func (s Stream) payload() ([]byte, error) {
	if s.R == nil {
		return nil, nil
	}
	return io.ReadAll(s.R)
}

// File is one item to be written into an archive.
type File struct {
	// Name is the slash-separated path of the entry inside the archive.
	// Backslashes are normalized and a leading slash is stripped. A single
	// input with an empty name is stored under a default name.
	Name string

	// Content supplies the entry bytes. Nil means an empty entry.
	Content Content

	// Dir marks a directory placeholder. Directory entries may also be
	// declared with a trailing slash in Name; either way they carry no
	// content.
	Dir bool

	// Comment is an optional per-entry comment.
	Comment string

	// ModTime is the entry timestamp; the container truncates it to
	// 2-second resolution. Zero means the time of writing.
	ModTime time.Time
}

// ExtractedFile is one entry's name and plaintext content as returned by
// ReadEntries.
type ExtractedFile struct {
	Name string
	Data []byte
}

// Entry describes one archive member as recorded in the central directory.
// Entries are immutable once parsed or written.
type Entry struct {
	// Name is the slash-separated entry path; directories end in a slash.
	Name string

	// UncompressedSize is the plaintext content size in bytes.
	UncompressedSize uint64

	// CompressedSize is the stored payload size, including any encryption
	// framing. It can exceed UncompressedSize for incompressible content.
	CompressedSize uint64

	// Modified is the entry timestamp at the container's 2-second
	// resolution.
	Modified time.Time

	// Dir reports a directory placeholder.
	Dir bool

	// Encrypted reports whether the payload is password protected.
	Encrypted bool

	// Comment is the per-entry comment, if any.
	Comment string

	// Method is the compression method of the payload.
	Method Method
}

// Metadata is the structural description of an archive, derived entirely
// from its central directory without decompressing any payload.
type Metadata struct {
	// Entries lists every archive member in storage order.
	Entries []Entry

	// TotalUncompressedSize sums UncompressedSize over non-directory
	// entries.
	TotalUncompressedSize uint64

	// TotalCompressedSize sums CompressedSize over non-directory entries.
	TotalCompressedSize uint64

	// Comment is the archive-level comment from the end record.
	Comment string
}
