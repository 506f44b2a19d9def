// Package zipfmt implements the fixed on-disk record layouts of the ZIP
// container: local file headers, central directory records and the
// end-of-central-directory record, plus the DOS timestamp and legacy text
// encodings those records use.
//
// Everything here is little-endian and byte-exact per the PKWARE
// application note; archives produced from these records are consumed by
// external, non-custom tools.
package zipfmt

import (
	"errors"
	"time"
)

// Record signatures.
const (
	SigLocalHeader   = 0x04034b50
	SigCentralHeader = 0x02014b50
	SigEndOfCentral  = 0x06054b50
)

// Fixed record sizes, excluding variable-length name/extra/comment tails.
const (
	LocalHeaderLen   = 30
	CentralHeaderLen = 46
	EndOfCentralLen  = 22
)

// General purpose flag bits.
const (
	FlagEncrypted      = 0x0001
	FlagDataDescriptor = 0x0008
	FlagUTF8           = 0x0800
)

// Compression method codes stored in headers.
const (
	MethodStored  uint16 = 0
	MethodDeflate uint16 = 8

	// MethodAES marks a WinZip AES entry; the real method moves into the
	// AES extra field.
	MethodAES uint16 = 99
)

// AESExtraTag is the extra-field header ID of the WinZip AES descriptor.
const AESExtraTag = 0x9901

// Version fields. 2.0 covers store/deflate; WinZip uses 5.1 for AES.
const (
	VersionDefault uint16 = 20
	VersionAES     uint16 = 51
)

// ErrFormat reports a structurally invalid or truncated archive.
var ErrFormat = errors.New("zipfmt: invalid archive structure")

// AESParams describes the WinZip AES extra field of an encrypted entry.
type AESParams struct {
	// Version is the AE vendor version; 2 means the CRC field is zeroed
	// and the HMAC alone authenticates the payload.
	Version uint16

	// Strength selects the key size: 1 = AES-128, 2 = AES-192, 3 = AES-256.
	Strength byte

	// Method is the compression method applied before encryption.
	Method uint16
}

// Record is one archive entry as stored in the central directory. The same
// struct drives both encoding (writer fills it in) and decoding (parser
// reconstructs it from bytes).
type Record struct {
	Name             string
	Comment          string
	Flags            uint16
	Method           uint16
	Modified         time.Time
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	HeaderOffset     uint32
	ExternalAttrs    uint32

	// AES is non-nil when Method == MethodAES.
	AES *AESParams
}

// IsDir reports whether the record names a directory placeholder.
func (r *Record) IsDir() bool {
	return len(r.Name) > 0 && r.Name[len(r.Name)-1] == '/'
}

// Encrypted reports whether the entry payload is encrypted.
func (r *Record) Encrypted() bool {
	return r.Flags&FlagEncrypted != 0
}

// EndOfCentral is the parsed end-of-central-directory record.
type EndOfCentral struct {
	EntryCount   int
	DirSize      uint32
	DirOffset    uint32
	Comment      string
	RecordOffset int
}
