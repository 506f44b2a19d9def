package zipfmt

import "time"

// The MS-DOS timestamp packs a local date and time into two 16-bit fields
// with 2-second resolution and can only express the years 1980-2107.

// TimeToDOS converts t to DOS date and time fields, clamping to the
// representable range. The zero time encodes as the epoch (1980-01-01).
func TimeToDOS(t time.Time) (date, tm uint16) {
	if t.IsZero() {
		return 0x21, 0 // 1980-01-01 00:00:00
	}
	t = t.Local()
	year := t.Year()
	switch {
	case year < 1980:
		return 0x21, 0
	case year > 2107:
		t = time.Date(2107, 12, 31, 23, 59, 58, 0, t.Location())
		year = 2107
	}

	date = uint16(year-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	tm = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return date, tm
}

// DOSToTime converts DOS date and time fields to a local time.Time.
func DOSToTime(date, tm uint16) time.Time {
	return time.Date(
		int(date>>9)+1980,
		time.Month(date>>5&0xf),
		int(date&0x1f),
		int(tm>>11),
		int(tm>>5&0x3f),
		int(tm&0x1f)*2,
		0,
		time.Local,
	)
}
