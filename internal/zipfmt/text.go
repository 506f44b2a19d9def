package zipfmt

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DecodeText interprets raw name or comment bytes from an archive record.
// Bytes written with the UTF-8 flag, or forming valid UTF-8 on their own,
// pass through unchanged; the end record has no flag bit at all, so the
// validity check is what keeps comments stable across a write/read cycle.
// Anything else is treated as CP437, the legacy DOS code page most
// pre-Unicode tools wrote.
func DecodeText(raw []byte, utf8Flag bool) string {
	if len(raw) == 0 {
		return ""
	}
	if utf8Flag || utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.CodePage437.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// NeedsUTF8Flag reports whether s contains bytes outside ASCII and so must
// be written with the UTF-8 name flag for external tools to decode it.
func NeedsUTF8Flag(s string) bool {
	return !isASCII([]byte(s))
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
