package archive

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/7gugu/zip-mcp/internal/zipcrypt"
	"github.com/7gugu/zip-mcp/internal/zipfmt"
)

// ReadMetadata parses the structural description of an archive from its
// central directory alone; no entry payload is read or decompressed, so it
// works on encrypted archives without a password.
func ReadMetadata(data []byte, opts ...ReadOption) (*Metadata, error) {
	var cfg readConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	eocd, records, err := parseDirectory(data)
	if err != nil {
		return nil, err
	}

	meta := &Metadata{
		Entries: make([]Entry, 0, len(records)),
		Comment: eocd.Comment,
	}
	for _, rec := range records {
		entry := entryFromRecord(rec)
		if !entry.Dir {
			meta.TotalUncompressedSize += entry.UncompressedSize
			meta.TotalCompressedSize += entry.CompressedSize
		}
		meta.Entries = append(meta.Entries, entry)
	}
	return meta, nil
}

// ReadEntries extracts every non-directory entry in central-directory
// order, returning names paired with plaintext content. Encrypted entries
// need [ReadWithPassword]; a missing password and a wrong one fail with
// distinct errors. Any entry failure aborts the whole read.
//
// Archives may hold duplicate names; all occurrences are returned, and
// callers collapsing them into a map end up with the last one, matching
// what conforming extraction tools do.
func ReadEntries(data []byte, opts ...ReadOption) ([]ExtractedFile, error) {
	var cfg readConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	_, records, err := parseDirectory(data)
	if err != nil {
		return nil, err
	}

	files := make([]ExtractedFile, 0, len(records))
	for _, rec := range records {
		if rec.IsDir() {
			continue
		}
		content, err := extractEntry(data, rec, &cfg)
		if err != nil {
			return nil, err
		}
		files = append(files, ExtractedFile{Name: rec.Name, Data: content})
	}
	return files, nil
}

// parseDirectory locates the end record and walks the central directory,
// mapping format-level failures to structural-corruption errors.
func parseDirectory(data []byte) (*zipfmt.EndOfCentral, []*zipfmt.Record, error) {
	eocd, err := zipfmt.FindEndOfCentral(data)
	if err != nil {
		return nil, nil, newError(StructuralCorruption, "", err)
	}
	records, err := zipfmt.ParseCentralDirectory(data, eocd)
	if err != nil {
		return nil, nil, newError(StructuralCorruption, "", err)
	}
	return eocd, records, nil
}

// extractEntry runs one entry through the decrypt-then-inflate pipeline and
// verifies its checksum.
func extractEntry(data []byte, rec *zipfmt.Record, cfg *readConfig) ([]byte, error) {
	start, err := zipfmt.PayloadOffset(data, rec)
	if err != nil {
		return nil, newError(StructuralCorruption, rec.Name, err)
	}
	payload := data[start : start+int(rec.CompressedSize)]

	method := rec.Method
	legacyCrypto := false
	switch {
	case rec.AES != nil:
		if cfg.password == "" {
			return nil, newError(DecryptionFailure, rec.Name, ErrPasswordRequired)
		}
		plain, err := zipcrypt.Open(payload, []byte(cfg.password), rec.AES.Strength)
		if err != nil {
			if errors.Is(err, zipcrypt.ErrPassword) || errors.Is(err, zipcrypt.ErrAuth) {
				return nil, newError(DecryptionFailure, rec.Name, fmt.Errorf("%w: %v", ErrWrongPassword, err))
			}
			return nil, newError(StructuralCorruption, rec.Name, err)
		}
		payload = plain
		method = rec.AES.Method

	case rec.Encrypted():
		// Legacy ZipCrypto from an external tool. The 12-byte header's
		// last byte checks against the CRC high byte, or the DOS time
		// high byte when the entry was streamed with a data descriptor.
		if cfg.password == "" {
			return nil, newError(DecryptionFailure, rec.Name, ErrPasswordRequired)
		}
		check := byte(rec.CRC32 >> 24)
		if rec.Flags&zipfmt.FlagDataDescriptor != 0 {
			_, dosTime := zipfmt.TimeToDOS(rec.Modified)
			check = byte(dosTime >> 8)
		}
		plain, err := zipcrypt.DecryptZipCrypto(payload, []byte(cfg.password), check)
		if err != nil {
			if errors.Is(err, zipcrypt.ErrPassword) {
				return nil, newError(DecryptionFailure, rec.Name, ErrWrongPassword)
			}
			return nil, newError(StructuralCorruption, rec.Name, err)
		}
		payload = plain
		legacyCrypto = true
	}

	content, err := decompress(payload, method)
	if err != nil {
		if errors.Is(err, errUnsupportedMethod) {
			return nil, newError(UnsupportedMethod, rec.Name, err)
		}
		if legacyCrypto {
			// ZipCrypto's check byte passes for ~1/256 wrong passwords;
			// garbage that fails to inflate is a password mismatch, not
			// archive damage.
			return nil, newError(DecryptionFailure, rec.Name, fmt.Errorf("%w: %v", ErrWrongPassword, err))
		}
		return nil, newError(StructuralCorruption, rec.Name, err)
	}

	if len(content) != int(rec.UncompressedSize) {
		return nil, newError(StructuralCorruption, rec.Name,
			fmt.Errorf("content is %d bytes, directory records %d", len(content), rec.UncompressedSize))
	}

	// AE-2 zeroes the CRC field; the HMAC already authenticated the
	// payload above. AE-1 archives keep a real CRC, so check it.
	if rec.AES == nil || rec.AES.Version == 1 {
		if sum := crc32.ChecksumIEEE(content); sum != rec.CRC32 {
			if legacyCrypto {
				return nil, newError(DecryptionFailure, rec.Name, fmt.Errorf("%w: %v", ErrWrongPassword, ErrChecksum))
			}
			return nil, newError(StructuralCorruption, rec.Name, ErrChecksum)
		}
	}

	return content, nil
}

var errUnsupportedMethod = errors.New("unsupported compression method")

func decompress(payload []byte, method uint16) ([]byte, error) {
	switch method {
	case zipfmt.MethodStored:
		return bytes.Clone(payload), nil
	case zipfmt.MethodDeflate:
		fr := flate.NewReader(bytes.NewReader(payload))
		content, err := io.ReadAll(fr)
		if err != nil {
			fr.Close()
			return nil, fmt.Errorf("inflate: %w", err)
		}
		if err := fr.Close(); err != nil {
			return nil, fmt.Errorf("inflate: %w", err)
		}
		return content, nil
	default:
		return nil, fmt.Errorf("%w: %d", errUnsupportedMethod, method)
	}
}

// entryFromRecord maps a central-directory record to the public entry view.
func entryFromRecord(rec *zipfmt.Record) Entry {
	method := rec.Method
	if rec.AES != nil {
		method = rec.AES.Method
	}
	return Entry{
		Name:             rec.Name,
		UncompressedSize: uint64(rec.UncompressedSize),
		CompressedSize:   uint64(rec.CompressedSize),
		Modified:         rec.Modified,
		Dir:              rec.IsDir(),
		Encrypted:        rec.Encrypted(),
		Comment:          rec.Comment,
		Method:           Method(method),
	}
}
