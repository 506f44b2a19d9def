package zipfmt

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeLocalHeader serializes the local file header for rec, including the
// entry name and any AES extra field.
func EncodeLocalHeader(rec *Record) []byte {
	name := []byte(rec.Name)
	extra := encodeExtra(rec)

	buf := make([]byte, LocalHeaderLen, LocalHeaderLen+len(name)+len(extra))
	le := binary.LittleEndian

	date, tm := TimeToDOS(rec.Modified)
	le.PutUint32(buf[0:4], SigLocalHeader)
	le.PutUint16(buf[4:6], versionNeeded(rec))
	le.PutUint16(buf[6:8], rec.Flags)
	le.PutUint16(buf[8:10], rec.Method)
	le.PutUint16(buf[10:12], tm)
	le.PutUint16(buf[12:14], date)
	le.PutUint32(buf[14:18], rec.CRC32)
	le.PutUint32(buf[18:22], rec.CompressedSize)
	le.PutUint32(buf[22:26], rec.UncompressedSize)
	le.PutUint16(buf[26:28], uint16(len(name)))
	le.PutUint16(buf[28:30], uint16(len(extra)))

	buf = append(buf, name...)
	buf = append(buf, extra...)
	return buf
}

// EncodeCentralRecord serializes the central directory record for rec,
// including name, extra field and comment.
func EncodeCentralRecord(rec *Record) []byte {
	name := []byte(rec.Name)
	extra := encodeExtra(rec)
	comment := []byte(rec.Comment)

	buf := make([]byte, CentralHeaderLen, CentralHeaderLen+len(name)+len(extra)+len(comment))
	le := binary.LittleEndian

	date, tm := TimeToDOS(rec.Modified)
	le.PutUint32(buf[0:4], SigCentralHeader)
	le.PutUint16(buf[4:6], versionNeeded(rec)) // version made by
	le.PutUint16(buf[6:8], versionNeeded(rec))
	le.PutUint16(buf[8:10], rec.Flags)
	le.PutUint16(buf[10:12], rec.Method)
	le.PutUint16(buf[12:14], tm)
	le.PutUint16(buf[14:16], date)
	le.PutUint32(buf[16:20], rec.CRC32)
	le.PutUint32(buf[20:24], rec.CompressedSize)
	le.PutUint32(buf[24:28], rec.UncompressedSize)
	le.PutUint16(buf[28:30], uint16(len(name)))
	le.PutUint16(buf[30:32], uint16(len(extra)))
	le.PutUint16(buf[32:34], uint16(len(comment)))
	// disk number start, internal attrs: zero
	le.PutUint32(buf[38:42], rec.ExternalAttrs)
	le.PutUint32(buf[42:46], rec.HeaderOffset)

	buf = append(buf, name...)
	buf = append(buf, extra...)
	buf = append(buf, comment...)
	return buf
}

// EncodeEndOfCentral serializes the end-of-central-directory record.
// The entry count, directory size and archive comment must each fit their
// 16/32-bit fields; the caller validates limits up front.
func EncodeEndOfCentral(count int, dirSize, dirOffset uint32, comment string) ([]byte, error) {
	if count > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d entries exceed the record limit", ErrFormat, count)
	}
	if len(comment) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: archive comment of %d bytes exceeds the record limit", ErrFormat, len(comment))
	}

	buf := make([]byte, EndOfCentralLen, EndOfCentralLen+len(comment))
	le := binary.LittleEndian

	le.PutUint32(buf[0:4], SigEndOfCentral)
	// disk numbers: zero (multi-volume archives are unsupported)
	le.PutUint16(buf[8:10], uint16(count))
	le.PutUint16(buf[10:12], uint16(count))
	le.PutUint32(buf[12:16], dirSize)
	le.PutUint32(buf[16:20], dirOffset)
	le.PutUint16(buf[20:22], uint16(len(comment)))

	return append(buf, comment...), nil
}

// encodeExtra builds the extra field block. Only the WinZip AES descriptor
// is emitted; plain entries carry no extra data.
func encodeExtra(rec *Record) []byte {
	if rec.AES == nil {
		return nil
	}
	buf := make([]byte, 11)
	le := binary.LittleEndian
	le.PutUint16(buf[0:2], AESExtraTag)
	le.PutUint16(buf[2:4], 7)
	le.PutUint16(buf[4:6], rec.AES.Version)
	buf[6] = 'A'
	buf[7] = 'E'
	buf[8] = rec.AES.Strength
	le.PutUint16(buf[9:11], rec.AES.Method)
	return buf
}

func versionNeeded(rec *Record) uint16 {
	if rec.AES != nil {
		return VersionAES
	}
	return VersionDefault
}
