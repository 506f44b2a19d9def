package zipfmt

import (
	"encoding/binary"
	"fmt"
	"math"
)

// maxCommentScan bounds the backward search for the end-of-central-directory
// record: the record itself plus the largest comment its 16-bit length field
// can describe.
const maxCommentScan = EndOfCentralLen + math.MaxUint16

// FindEndOfCentral locates and parses the end-of-central-directory record by
// scanning backward from the end of data. The record may be followed by an
// archive comment of unknown length, so every candidate signature position
// is checked against its own declared comment length.
func FindEndOfCentral(data []byte) (*EndOfCentral, error) {
	if len(data) < EndOfCentralLen {
		return nil, fmt.Errorf("%w: %d bytes is shorter than an end-of-central-directory record", ErrFormat, len(data))
	}

	le := binary.LittleEndian
	floor := 0
	if len(data) > maxCommentScan {
		floor = len(data) - maxCommentScan
	}

	for pos := len(data) - EndOfCentralLen; pos >= floor; pos-- {
		if le.Uint32(data[pos:pos+4]) != SigEndOfCentral {
			continue
		}
		commentLen := int(le.Uint16(data[pos+20 : pos+22]))
		if pos+EndOfCentralLen+commentLen != len(data) {
			continue
		}

		eocd := &EndOfCentral{
			EntryCount:   int(le.Uint16(data[pos+10 : pos+12])),
			DirSize:      le.Uint32(data[pos+12 : pos+16]),
			DirOffset:    le.Uint32(data[pos+16 : pos+20]),
			Comment:      DecodeText(data[pos+EndOfCentralLen:], false),
			RecordOffset: pos,
		}
		if int64(eocd.DirOffset)+int64(eocd.DirSize) > int64(pos) {
			return nil, fmt.Errorf("%w: central directory extends past its end record", ErrFormat)
		}
		return eocd, nil
	}

	return nil, fmt.Errorf("%w: end-of-central-directory record not found", ErrFormat)
}

// ParseCentralDirectory decodes the central directory described by eocd into
// records in storage order.
func ParseCentralDirectory(data []byte, eocd *EndOfCentral) ([]*Record, error) {
	le := binary.LittleEndian
	pos := int(eocd.DirOffset)
	end := pos + int(eocd.DirSize)

	records := make([]*Record, 0, eocd.EntryCount)
	for i := 0; i < eocd.EntryCount; i++ {
		if pos+CentralHeaderLen > end {
			return nil, fmt.Errorf("%w: central directory truncated at entry %d", ErrFormat, i)
		}
		hdr := data[pos : pos+CentralHeaderLen]
		if le.Uint32(hdr[0:4]) != SigCentralHeader {
			return nil, fmt.Errorf("%w: bad central directory signature at entry %d", ErrFormat, i)
		}

		flags := le.Uint16(hdr[8:10])
		nameLen := int(le.Uint16(hdr[28:30]))
		extraLen := int(le.Uint16(hdr[30:32]))
		commentLen := int(le.Uint16(hdr[32:34]))

		varEnd := pos + CentralHeaderLen + nameLen + extraLen + commentLen
		if varEnd > end {
			return nil, fmt.Errorf("%w: central directory truncated at entry %d", ErrFormat, i)
		}
		nameRaw := data[pos+CentralHeaderLen : pos+CentralHeaderLen+nameLen]
		extraRaw := data[pos+CentralHeaderLen+nameLen : pos+CentralHeaderLen+nameLen+extraLen]
		commentRaw := data[pos+CentralHeaderLen+nameLen+extraLen : varEnd]

		utf8Names := flags&FlagUTF8 != 0
		rec := &Record{
			Name:             DecodeText(nameRaw, utf8Names),
			Comment:          DecodeText(commentRaw, utf8Names),
			Flags:            flags,
			Method:           le.Uint16(hdr[10:12]),
			Modified:         DOSToTime(le.Uint16(hdr[14:16]), le.Uint16(hdr[12:14])),
			CRC32:            le.Uint32(hdr[16:20]),
			CompressedSize:   le.Uint32(hdr[20:24]),
			UncompressedSize: le.Uint32(hdr[24:28]),
			ExternalAttrs:    le.Uint32(hdr[38:42]),
			HeaderOffset:     le.Uint32(hdr[42:46]),
		}
		if rec.Method == MethodAES {
			aes, err := parseAESExtra(extraRaw)
			if err != nil {
				return nil, fmt.Errorf("%w: entry %q: %v", ErrFormat, rec.Name, err)
			}
			rec.AES = aes
		}

		records = append(records, rec)
		pos = varEnd
	}

	return records, nil
}

// PayloadOffset returns the offset of rec's payload bytes by decoding the
// local file header the central directory points at. Local name and extra
// lengths may differ from the central copy, so they are read from the local
// header itself.
func PayloadOffset(data []byte, rec *Record) (int, error) {
	pos := int(rec.HeaderOffset)
	if pos+LocalHeaderLen > len(data) {
		return 0, fmt.Errorf("%w: entry %q: local header offset out of range", ErrFormat, rec.Name)
	}
	le := binary.LittleEndian
	hdr := data[pos : pos+LocalHeaderLen]
	if le.Uint32(hdr[0:4]) != SigLocalHeader {
		return 0, fmt.Errorf("%w: entry %q: bad local header signature", ErrFormat, rec.Name)
	}
	nameLen := int(le.Uint16(hdr[26:28]))
	extraLen := int(le.Uint16(hdr[28:30]))

	start := pos + LocalHeaderLen + nameLen + extraLen
	if start+int(rec.CompressedSize) > len(data) {
		return 0, fmt.Errorf("%w: entry %q: payload extends past end of archive", ErrFormat, rec.Name)
	}
	return start, nil
}

// parseAESExtra walks the extra field block looking for the WinZip AES
// descriptor: tag, AE version, "AE" vendor ID, strength, real method.
func parseAESExtra(extra []byte) (*AESParams, error) {
	le := binary.LittleEndian
	for len(extra) >= 4 {
		tag := le.Uint16(extra[0:2])
		size := int(le.Uint16(extra[2:4]))
		if 4+size > len(extra) {
			break
		}
		body := extra[4 : 4+size]
		if tag == AESExtraTag {
			if size < 7 || body[2] != 'A' || body[3] != 'E' {
				return nil, fmt.Errorf("malformed AES extra field")
			}
			p := &AESParams{
				Version:  le.Uint16(body[0:2]),
				Strength: body[4],
				Method:   le.Uint16(body[5:7]),
			}
			if p.Strength < 1 || p.Strength > 3 {
				return nil, fmt.Errorf("AES strength %d out of range", p.Strength)
			}
			return p, nil
		}
		extra = extra[4+size:]
	}
	return nil, fmt.Errorf("AES extra field missing")
}
