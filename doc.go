// Package archive implements the ZIP container format as a self-contained
// in-memory engine: it builds archives from named content items and parses
// archive bytes back into content and structural metadata.
//
// The package owns only the codec: entry framing, deflate compression,
// optional per-entry password encryption and central-directory bookkeeping.
// Filesystem traversal, transport and presentation belong to the caller.
//
// # Writing
//
// Write consumes an ordered list of [File] inputs and returns one complete
// archive buffer:
//
//	data, err := archive.Write([]archive.File{
//	    {Name: "notes/a.txt", Content: archive.Text("hello")},
//	    {Name: "blob.bin", Content: archive.Bytes(raw)},
//	}, archive.WriteWithLevel(9))
//
// With a password every entry payload is sealed with WinZip AES:
//
//	data, err := archive.Write(files,
//	    archive.WriteWithPassword("secret"),
//	    archive.WriteWithEncryptionStrength(archive.EncryptionAES256),
//	)
//
// # Reading
//
// ReadEntries extracts full content; ReadMetadata reports structure without
// touching any payload:
//
//	meta, err := archive.ReadMetadata(data)
//	files, err := archive.ReadEntries(data, archive.ReadWithPassword("secret"))
//
// Archives produced here are readable by standard ZIP tools and vice versa,
// including legacy archives with CP437 names or ZipCrypto encryption.
package archive
