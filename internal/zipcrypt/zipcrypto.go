package zipcrypt

import (
	"fmt"
	"hash/crc32"
)

// ZipCryptoHeaderLen is the size of the random prefix ZipCrypto prepends to
// each encrypted payload; its last byte doubles as a password check.
const ZipCryptoHeaderLen = 12

// DecryptZipCrypto removes the legacy ZipCrypto layer from payload. check is
// the expected value of the final header byte: the high byte of the entry
// CRC, or of the DOS time field when the entry uses a data descriptor. A
// mismatch returns ErrPassword.
//
// ZipCrypto is only decrypted, never written: its keystream has known
// plaintext attacks, so new archives always use the AES layer.
func DecryptZipCrypto(payload, password []byte, check byte) ([]byte, error) {
	if len(payload) < ZipCryptoHeaderLen {
		return nil, fmt.Errorf("zipcrypt: encrypted payload of %d bytes is shorter than the ZipCrypto header", len(payload))
	}

	var s cryptoState
	s.init(password)

	var header [ZipCryptoHeaderLen]byte
	for i := 0; i < ZipCryptoHeaderLen; i++ {
		header[i] = s.decryptByte(payload[i])
	}
	if header[ZipCryptoHeaderLen-1] != check {
		return nil, ErrPassword
	}

	plain := make([]byte, len(payload)-ZipCryptoHeaderLen)
	for i, c := range payload[ZipCryptoHeaderLen:] {
		plain[i] = s.decryptByte(c)
	}
	return plain, nil
}

// cryptoState is the three-key state machine of the traditional PKWARE
// cipher.
type cryptoState struct {
	k0, k1, k2 uint32
}

func (s *cryptoState) init(password []byte) {
	s.k0, s.k1, s.k2 = 0x12345678, 0x23456789, 0x34567890
	for _, c := range password {
		s.update(c)
	}
}

func (s *cryptoState) update(c byte) {
	s.k0 = crc32.IEEETable[byte(s.k0)^c] ^ (s.k0 >> 8)
	s.k1 = (s.k1 + (s.k0 & 0xff)) * 134775813 + 1
	s.k2 = crc32.IEEETable[byte(s.k2)^byte(s.k1>>24)] ^ (s.k2 >> 8)
}

func (s *cryptoState) decryptByte(c byte) byte {
	t := uint16(s.k2 | 2)
	c ^= byte(t * (t ^ 1) >> 8)
	s.update(c)
	return c
}
