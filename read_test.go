package archive

import (
	"bytes"
	"hash/crc32"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7gugu/zip-mcp/internal/zipcrypt"
	"github.com/7gugu/zip-mcp/internal/zipfmt"
)

func TestReadMetadataMatchesContent(t *testing.T) {
	t.Parallel()

	files := []File{
		{Name: "one.txt", Content: Text("first file contents")},
		{Name: "sub/", Dir: true},
		{Name: "sub/two.bin", Content: Bytes(bytes.Repeat([]byte{0xab}, 4096))},
		{Name: "three.txt", Content: Text("")},
	}
	data, err := Write(files, WriteWithLevel(9))
	require.NoError(t, err)

	meta, err := ReadMetadata(data)
	require.NoError(t, err)
	extracted, err := ReadEntries(data)
	require.NoError(t, err)

	var total uint64
	for _, f := range extracted {
		total += uint64(len(f.Data))
	}
	assert.Equal(t, total, meta.TotalUncompressedSize)

	var compressed uint64
	for _, e := range meta.Entries {
		if !e.Dir {
			compressed += e.CompressedSize
		}
	}
	assert.Equal(t, compressed, meta.TotalCompressedSize)
}

func TestReadMetadataOrder(t *testing.T) {
	t.Parallel()

	files := []File{
		{Name: "z.txt", Content: Text("z")},
		{Name: "a.txt", Content: Text("a")},
		{Name: "m.txt", Content: Text("m")},
	}
	data, err := Write(files)
	require.NoError(t, err)

	meta, err := ReadMetadata(data)
	require.NoError(t, err)
	require.Len(t, meta.Entries, 3)

	// Storage order, not name order.
	assert.Equal(t, "z.txt", meta.Entries[0].Name)
	assert.Equal(t, "a.txt", meta.Entries[1].Name)
	assert.Equal(t, "m.txt", meta.Entries[2].Name)
}

func TestReadPasswordGating(t *testing.T) {
	t.Parallel()

	files := []File{{Name: "secret.txt", Content: Text("top secret body")}}
	data, err := Write(files, WriteWithPassword("p"))
	require.NoError(t, err)

	_, err = ReadEntries(data)
	assert.ErrorIs(t, err, ErrPasswordRequired)

	_, err = ReadEntries(data, ReadWithPassword("wrong"))
	assert.ErrorIs(t, err, ErrWrongPassword)

	got, err := ReadEntries(data, ReadWithPassword("p"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("top secret body"), got[0].Data)

	// Metadata stays readable without the password.
	meta, err := ReadMetadata(data)
	require.NoError(t, err)
	require.Len(t, meta.Entries, 1)
	assert.True(t, meta.Entries[0].Encrypted)
	assert.Equal(t, uint64(len("top secret body")), meta.TotalUncompressedSize)
}

func TestReadEncryptionStrengths(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("strength tiers "), 100)
	for _, s := range []EncryptionStrength{EncryptionAES128, EncryptionAES192, EncryptionAES256} {
		data, err := Write(
			[]File{{Name: "s.bin", Content: Bytes(content)}},
			WriteWithPassword("tiered"), WriteWithEncryptionStrength(s),
		)
		require.NoError(t, err, "strength %d", s)

		got, err := ReadEntries(data, ReadWithPassword("tiered"))
		require.NoError(t, err, "strength %d", s)
		require.Len(t, got, 1)
		assert.Equal(t, content, got[0].Data, "strength %d", s)
	}
}

func TestReadEncryptedStore(t *testing.T) {
	t.Parallel()

	data, err := Write(
		[]File{{Name: "raw.bin", Content: Bytes{1, 2, 3, 4, 5}}},
		WriteWithLevel(0), WriteWithPassword("pw"),
	)
	require.NoError(t, err)

	got, err := ReadEntries(data, ReadWithPassword("pw"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, got[0].Data)

	// Store + AES framing: compressed size exceeds the plaintext size.
	meta, err := ReadMetadata(data)
	require.NoError(t, err)
	assert.Greater(t, meta.Entries[0].CompressedSize, meta.Entries[0].UncompressedSize)
	assert.Equal(t, MethodStore, meta.Entries[0].Method)
}

func TestReadTruncatedArchive(t *testing.T) {
	t.Parallel()

	data, err := Write([]File{{Name: "a.txt", Content: Text("some content")}})
	require.NoError(t, err)

	for _, cut := range []int{1, zipfmt.EndOfCentralLen, len(data) / 2} {
		_, err := ReadMetadata(data[:len(data)-cut])
		var archErr *Error
		require.ErrorAs(t, err, &archErr, "cut %d", cut)
		assert.Equal(t, StructuralCorruption, archErr.Kind, "cut %d", cut)
	}
}

func TestReadGarbage(t *testing.T) {
	t.Parallel()

	_, err := ReadMetadata(bytes.Repeat([]byte{0x5a}, 300))
	var archErr *Error
	require.ErrorAs(t, err, &archErr)
	assert.Equal(t, StructuralCorruption, archErr.Kind)

	_, err = ReadEntries([]byte("pk"))
	require.ErrorAs(t, err, &archErr)
	assert.Equal(t, StructuralCorruption, archErr.Kind)
}

func TestReadCorruptPayload(t *testing.T) {
	t.Parallel()

	content := []byte("checksummed content")
	data, err := Write([]File{{Name: "c.bin", Content: Bytes(content)}}, WriteWithLevel(0))
	require.NoError(t, err)

	// With level 0 the payload starts right after the local header and is
	// stored verbatim; flip one byte of it.
	payloadStart := zipfmt.LocalHeaderLen + len("c.bin")
	corrupted := bytes.Clone(data)
	corrupted[payloadStart] ^= 0xff

	_, err = ReadEntries(corrupted)
	var archErr *Error
	require.ErrorAs(t, err, &archErr)
	assert.Equal(t, StructuralCorruption, archErr.Kind)
	assert.Equal(t, "c.bin", archErr.Entry)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestReadUnsupportedMethod(t *testing.T) {
	t.Parallel()

	// Hand-build an archive whose entry declares bzip2 (method 12).
	rec := &zipfmt.Record{
		Name:             "exotic.bin",
		Method:           12,
		Modified:         time.Now(),
		CRC32:            crc32.ChecksumIEEE([]byte("x")),
		CompressedSize:   1,
		UncompressedSize: 1,
	}
	data := buildArchive(t, rec, []byte("x"))

	// Metadata is still reported.
	meta, err := ReadMetadata(data)
	require.NoError(t, err)
	require.Len(t, meta.Entries, 1)

	_, err = ReadEntries(data)
	var archErr *Error
	require.ErrorAs(t, err, &archErr)
	assert.Equal(t, UnsupportedMethod, archErr.Kind)
	assert.Equal(t, "exotic.bin", archErr.Entry)
}

func TestReadAE1Archive(t *testing.T) {
	t.Parallel()

	// AE-1 entries from external tools carry a populated CRC field, unlike
	// the AE-2 form this engine writes.
	content := []byte("ae-1 keeps its checksum")
	password := "vintage"
	sum := crc32.ChecksumIEEE(content)

	sealed, err := zipcrypt.Seal(content, []byte(password), 3)
	require.NoError(t, err)

	rec := &zipfmt.Record{
		Name:             "ae1.txt",
		Flags:            zipfmt.FlagEncrypted,
		Method:           zipfmt.MethodAES,
		Modified:         time.Now(),
		CRC32:            sum,
		CompressedSize:   uint32(len(sealed)),
		UncompressedSize: uint32(len(content)),
		AES:              &zipfmt.AESParams{Version: 1, Strength: 3, Method: zipfmt.MethodStored},
	}
	data := buildArchive(t, rec, sealed)

	got, err := ReadEntries(data, ReadWithPassword(password))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, content, got[0].Data)

	// A bad CRC must be caught; the HMAC alone does not stand in for it
	// on AE-1.
	rec.CRC32 = sum ^ 0xffffffff
	data = buildArchive(t, rec, sealed)
	_, err = ReadEntries(data, ReadWithPassword(password))
	var archErr *Error
	require.ErrorAs(t, err, &archErr)
	assert.Equal(t, StructuralCorruption, archErr.Kind)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestReadLegacyZipCrypto(t *testing.T) {
	t.Parallel()

	content := []byte("written by an old tool with the traditional cipher")
	password := "legacy-pw"
	sum := crc32.ChecksumIEEE(content)

	payload := legacyEncrypt(content, password, byte(sum>>24))
	rec := &zipfmt.Record{
		Name:             "old.txt",
		Flags:            zipfmt.FlagEncrypted,
		Method:           zipfmt.MethodStored,
		Modified:         time.Now(),
		CRC32:            sum,
		CompressedSize:   uint32(len(payload)),
		UncompressedSize: uint32(len(content)),
	}
	data := buildArchive(t, rec, payload)

	got, err := ReadEntries(data, ReadWithPassword(password))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, content, got[0].Data)

	_, err = ReadEntries(data, ReadWithPassword("not it"))
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = ReadEntries(data)
	assert.ErrorIs(t, err, ErrPasswordRequired)
}

// buildArchive assembles a single-entry archive directly from format
// records, bypassing Write, for fixtures Write refuses to produce.
func buildArchive(t *testing.T, rec *zipfmt.Record, payload []byte) []byte {
	t.Helper()

	var out bytes.Buffer
	rec.HeaderOffset = 0
	out.Write(zipfmt.EncodeLocalHeader(rec))
	out.Write(payload)

	dirOffset := uint32(out.Len())
	central := zipfmt.EncodeCentralRecord(rec)
	out.Write(central)

	end, err := zipfmt.EncodeEndOfCentral(1, uint32(len(central)), dirOffset, "")
	require.NoError(t, err)
	out.Write(end)
	return out.Bytes()
}

// legacyEncrypt is a reference implementation of the traditional PKWARE
// cipher, used only to produce fixtures: the engine never writes ZipCrypto.
func legacyEncrypt(content []byte, password string, check byte) []byte {
	k0, k1, k2 := uint32(0x12345678), uint32(0x23456789), uint32(0x34567890)
	update := func(c byte) {
		k0 = crc32.IEEETable[byte(k0)^c] ^ (k0 >> 8)
		k1 = (k1+(k0&0xff))*134775813 + 1
		k2 = crc32.IEEETable[byte(k2)^byte(k1>>24)] ^ (k2 >> 8)
	}
	encrypt := func(c byte) byte {
		t := uint16(k2 | 2)
		enc := c ^ byte(t*(t^1)>>8)
		update(c)
		return enc
	}
	for i := 0; i < len(password); i++ {
		update(password[i])
	}

	out := make([]byte, 0, 12+len(content))
	for i := 0; i < 11; i++ {
		out = append(out, encrypt(byte(i*31)))
	}
	out = append(out, encrypt(check))
	for _, c := range content {
		out = append(out, encrypt(c))
	}
	return out
}
