// Package zipcrypt implements the per-entry encryption layers of the ZIP
// container: WinZip AES (AE-2) for writing and reading, and the legacy
// ZipCrypto stream cipher for reading archives produced by older tools.
package zipcrypt

import (
	"crypto/aes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Sentinel errors. ErrPassword covers both verifier and authentication
// mismatches: the 16-bit password verifier lets a wrong password slip
// through once in 65536 attempts, in which case the HMAC catches it.
var (
	ErrPassword = errors.New("zipcrypt: password mismatch")
	ErrAuth     = errors.New("zipcrypt: authentication failed")
)

// WinZip AE parameters.
const (
	kdfIterations = 1000
	verifierLen   = 2
	authCodeLen   = 10
)

// SaltLen returns the salt size for an AES strength tier (1-3).
func SaltLen(strength byte) int { return 4 * (int(strength) + 1) }

// KeyLen returns the AES key size for a strength tier (1-3).
func KeyLen(strength byte) int { return 8 * (int(strength) + 1) }

// Overhead returns the bytes WinZip AES adds around an entry payload.
func Overhead(strength byte) int { return SaltLen(strength) + verifierLen + authCodeLen }

// Seal encrypts payload with a key derived from password at the given AES
// strength tier, producing the WinZip AE-2 wire form:
// salt, password verifier, ciphertext, truncated HMAC-SHA1 auth code.
func Seal(payload, password []byte, strength byte) ([]byte, error) {
	if strength < 1 || strength > 3 {
		return nil, fmt.Errorf("zipcrypt: invalid AES strength %d", strength)
	}

	salt := make([]byte, SaltLen(strength))
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("zipcrypt: generate salt: %w", err)
	}

	encKey, macKey, verifier := deriveKeys(password, salt, strength)

	out := make([]byte, 0, len(salt)+verifierLen+len(payload)+authCodeLen)
	out = append(out, salt...)
	out = append(out, verifier...)

	ct := make([]byte, len(payload))
	if err := ctrCrypt(encKey, payload, ct); err != nil {
		return nil, err
	}
	out = append(out, ct...)

	mac := hmac.New(sha1.New, macKey)
	mac.Write(ct)
	return append(out, mac.Sum(nil)[:authCodeLen]...), nil
}

// Open decrypts a WinZip AES payload. A verifier or HMAC mismatch returns
// ErrPassword / ErrAuth respectively so callers can distinguish a wrong
// password from structural damage.
func Open(payload, password []byte, strength byte) ([]byte, error) {
	if strength < 1 || strength > 3 {
		return nil, fmt.Errorf("zipcrypt: invalid AES strength %d", strength)
	}
	saltLen := SaltLen(strength)
	if len(payload) < Overhead(strength) {
		return nil, fmt.Errorf("zipcrypt: encrypted payload of %d bytes is shorter than the AES framing", len(payload))
	}

	salt := payload[:saltLen]
	storedVerifier := payload[saltLen : saltLen+verifierLen]
	ct := payload[saltLen+verifierLen : len(payload)-authCodeLen]
	storedAuth := payload[len(payload)-authCodeLen:]

	encKey, macKey, verifier := deriveKeys(password, salt, strength)
	if subtle.ConstantTimeCompare(verifier, storedVerifier) != 1 {
		return nil, ErrPassword
	}

	mac := hmac.New(sha1.New, macKey)
	mac.Write(ct)
	if subtle.ConstantTimeCompare(mac.Sum(nil)[:authCodeLen], storedAuth) != 1 {
		return nil, ErrAuth
	}

	plain := make([]byte, len(ct))
	if err := ctrCrypt(encKey, ct, plain); err != nil {
		return nil, err
	}
	return plain, nil
}

// deriveKeys runs the AE key schedule: PBKDF2-HMAC-SHA1 over the password
// and salt yields the cipher key, the MAC key and the 2-byte verifier.
func deriveKeys(password, salt []byte, strength byte) (encKey, macKey, verifier []byte) {
	keyLen := KeyLen(strength)
	derived := pbkdf2.Key(password, salt, kdfIterations, 2*keyLen+verifierLen, sha1.New)
	return derived[:keyLen], derived[keyLen : 2*keyLen], derived[2*keyLen:]
}

// ctrCrypt applies AES-CTR with the little-endian block counter the WinZip
// AE spec mandates (counter starts at 1, no nonce). crypto/cipher's CTR
// mode increments big-endian, so the keystream is generated by hand.
func ctrCrypt(key, src, dst []byte) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("zipcrypt: %w", err)
	}

	var counter, keystream [aes.BlockSize]byte
	for i := 0; i < len(src); i += aes.BlockSize {
		// increment the little-endian counter
		for j := 0; j < aes.BlockSize; j++ {
			counter[j]++
			if counter[j] != 0 {
				break
			}
		}
		block.Encrypt(keystream[:], counter[:])

		n := len(src) - i
		if n > aes.BlockSize {
			n = aes.BlockSize
		}
		for j := 0; j < n; j++ {
			dst[i+j] = src[i+j] ^ keystream[j]
		}
	}
	return nil
}
