package archive

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"path"
	"runtime"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"golang.org/x/sync/errgroup"

	"github.com/7gugu/zip-mcp/internal/zipcrypt"
	"github.com/7gugu/zip-mcp/internal/zipfmt"
)

// DefaultEntryName is the name assigned to a single input whose Name is
// empty.
const DefaultEntryName = "untitled"

// maxFieldLen is the limit of every 16-bit length field in the container
// (names, comments, entry count).
const maxFieldLen = math.MaxUint16

// Write builds a complete archive from files, in input order, and returns
// the archive bytes. The operation is all-or-nothing: any entry failure
// aborts it and no partial archive is returned.
//
// Duplicate names are permitted; the container itself does not forbid them,
// and a conforming reader extracting to a flat namespace keeps the last
// occurrence.
//
// Payload compression of independent entries runs in parallel (see
// [WriteWithConcurrency]); placement into the output buffer is sequential
// in input order, so output offsets are deterministic.
func Write(files []File, opts ...WriteOption) ([]byte, error) {
	cfg := writeConfig{level: DefaultLevel}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.encrypted() && cfg.strength == 0 {
		cfg.strength = EncryptionAES256
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	prepared := make([]*preparedEntry, len(files))

	workers := cfg.concurrency
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range files {
		i := i
		g.Go(func() error {
			entry, err := prepareEntry(&files[i], &cfg, len(files), now)
			if err != nil {
				return err
			}
			prepared[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return assemble(prepared, &cfg)
}

// preparedEntry is one entry after the compression and encryption pipeline,
// ready for sequential placement.
type preparedEntry struct {
	rec     zipfmt.Record
	payload []byte
}

// prepareEntry normalizes one input to bytes and runs it through the
// compress-then-encrypt pipeline. It touches no shared state, which is what
// lets entries be prepared concurrently.
func prepareEntry(f *File, cfg *writeConfig, total int, now time.Time) (*preparedEntry, error) {
	name, isDir := normalizeName(f.Name, f.Dir)
	if name == "" && !isDir {
		if total != 1 {
			return nil, newError(EncodingFailure, "", errors.New("entry has no name"))
		}
		name = DefaultEntryName
	}
	if name == "" {
		return nil, newError(EncodingFailure, "", errors.New("directory entry has no name"))
	}
	nameLen := len(name)
	if isDir {
		nameLen++ // trailing slash added below
	}
	if nameLen > maxFieldLen {
		return nil, newError(EncodingFailure, name, fmt.Errorf("name of %d bytes exceeds the format limit", nameLen))
	}
	if len(f.Comment) > maxFieldLen {
		return nil, newError(EncodingFailure, name, fmt.Errorf("comment of %d bytes exceeds the format limit", len(f.Comment)))
	}

	modified := f.ModTime
	if modified.IsZero() {
		modified = now
	}

	entry := &preparedEntry{
		rec: zipfmt.Record{
			Name:     name,
			Comment:  f.Comment,
			Modified: modified,
		},
	}
	if zipfmt.NeedsUTF8Flag(name) || zipfmt.NeedsUTF8Flag(f.Comment) {
		entry.rec.Flags |= zipfmt.FlagUTF8
	}

	if isDir {
		entry.rec.Name += "/"
		entry.rec.Method = zipfmt.MethodStored
		entry.rec.ExternalAttrs = 0x10 // MS-DOS directory attribute
		data, err := contentBytes(f.Content)
		if err != nil {
			return nil, newError(EncodingFailure, entry.rec.Name, err)
		}
		if len(data) > 0 {
			return nil, newError(EncodingFailure, entry.rec.Name, errors.New("directory entry carries content"))
		}
		return entry, nil
	}

	data, err := contentBytes(f.Content)
	if err != nil {
		return nil, newError(EncodingFailure, name, err)
	}
	if len(data) > math.MaxUint32 {
		return nil, newError(EncodingFailure, name, fmt.Errorf("content of %d bytes needs zip64, which this engine does not produce", len(data)))
	}

	entry.rec.CRC32 = crc32.ChecksumIEEE(data)
	entry.rec.UncompressedSize = uint32(len(data))

	method := zipfmt.MethodStored
	payload := data
	if cfg.level > 0 {
		method = zipfmt.MethodDeflate
		payload, err = deflateBytes(data, cfg.level)
		if err != nil {
			return nil, newError(EncodingFailure, name, err)
		}
	}
	entry.rec.Method = method

	if cfg.encrypted() {
		sealed, err := zipcrypt.Seal(payload, []byte(cfg.password), byte(cfg.strength))
		if err != nil {
			return nil, newError(EncryptionFailure, name, err)
		}
		payload = sealed
		entry.rec.AES = &zipfmt.AESParams{Version: 2, Strength: byte(cfg.strength), Method: method}
		entry.rec.Method = zipfmt.MethodAES
		entry.rec.Flags |= zipfmt.FlagEncrypted
		// AE-2 zeroes the CRC field; the HMAC authenticates instead.
		entry.rec.CRC32 = 0
	}

	if len(payload) > math.MaxUint32 {
		return nil, newError(EncodingFailure, name, fmt.Errorf("payload of %d bytes needs zip64, which this engine does not produce", len(payload)))
	}
	entry.rec.CompressedSize = uint32(len(payload))
	entry.payload = payload
	return entry, nil
}

// assemble places prepared entries sequentially, then closes the archive
// with the central directory and end record. The cursor is just the output
// buffer length; every directory record captures it before its local header
// is written.
func assemble(prepared []*preparedEntry, cfg *writeConfig) ([]byte, error) {
	var out, centralDir bytes.Buffer

	for _, entry := range prepared {
		if out.Len() > math.MaxUint32 {
			return nil, newError(EncodingFailure, entry.rec.Name, errors.New("archive exceeds 4 GiB, which needs zip64"))
		}
		entry.rec.HeaderOffset = uint32(out.Len())
		out.Write(zipfmt.EncodeLocalHeader(&entry.rec))
		out.Write(entry.payload)
		centralDir.Write(zipfmt.EncodeCentralRecord(&entry.rec))
	}

	if out.Len() > math.MaxUint32 {
		return nil, newError(EncodingFailure, "", errors.New("archive exceeds 4 GiB, which needs zip64"))
	}
	dirOffset := uint32(out.Len())
	out.Write(centralDir.Bytes())

	end, err := zipfmt.EncodeEndOfCentral(len(prepared), uint32(centralDir.Len()), dirOffset, cfg.comment)
	if err != nil {
		return nil, newError(EncodingFailure, "", err)
	}
	out.Write(end)

	return out.Bytes(), nil
}

func contentBytes(c Content) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	return c.payload()
}

func deflateBytes(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return buf.Bytes(), nil
}

// normalizeName converts a user-supplied entry name to the slash-separated
// relative form the container stores. A trailing slash marks a directory,
// as does the explicit Dir flag.
func normalizeName(name string, dir bool) (clean string, isDir bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	isDir = dir || strings.HasSuffix(name, "/")

	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "." {
		name = ""
	}
	return name, isDir
}
