// Package backup defines the tokdrop backup file format.
//
// A backup is a fixed header followed by a zstd-compressed record-store
// snapshot. With a passphrase the compressed payload is sealed with an
// AEAD keyed by Argon2id over the passphrase; the header is bound in as
// associated data.
//
//	magic "TDBK" | version 1 | cipher (0 none, 1 aes-gcm, 2 chacha20-poly1305)
//	[salt 16 bytes when cipher != 0]
//	payload
package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	version = 1

	// MinPassphraseLength is the shortest accepted passphrase.
	MinPassphraseLength = 8

	saltLength = 16

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32

	// maxSealedSize caps the ciphertext read into memory.
	maxSealedSize = 1 << 30
)

var magic = [4]byte{'T', 'D', 'B', 'K'}

// Cipher identifies the payload encryption.
type Cipher byte

const (
	CipherNone     Cipher = 0
	CipherAESGCM   Cipher = 1
	CipherChaCha20 Cipher = 2
)

func (c Cipher) String() string {
	switch c {
	case CipherNone:
		return "none"
	case CipherAESGCM:
		return "aes-gcm"
	case CipherChaCha20:
		return "chacha20-poly1305"
	default:
		return fmt.Sprintf("cipher(%d)", byte(c))
	}
}

var (
	ErrNotBackup          = errors.New("backup: not a tokdrop backup file")
	ErrUnsupported        = errors.New("backup: unsupported format version or cipher")
	ErrPassphraseRequired = errors.New("backup: file is encrypted, a passphrase is required")
	ErrPassphraseTooShort = fmt.Errorf("backup: passphrase must be at least %d characters", MinPassphraseLength)
	ErrDecrypt            = errors.New("backup: decryption failed (wrong passphrase or corrupted file)")
)

// Options controls Write.
type Options struct {
	// Passphrase enables encryption when non-empty.
	Passphrase []byte

	// Cipher selects the AEAD. Zero picks AES-GCM on amd64 and arm64,
	// where it is hardware accelerated, and ChaCha20-Poly1305 elsewhere.
	Cipher Cipher
}

// Write runs snapshot against a compressing writer and stores the result
// in dst.
func Write(dst io.Writer, snapshot func(io.Writer) error, opts Options) error {
	c := CipherNone
	if len(opts.Passphrase) > 0 {
		if len(opts.Passphrase) < MinPassphraseLength {
			return ErrPassphraseTooShort
		}
		c = opts.Cipher
		if c == CipherNone {
			c = defaultCipher()
		}
	}

	header := []byte{magic[0], magic[1], magic[2], magic[3], version, byte(c)}

	if c == CipherNone {
		if _, err := dst.Write(header); err != nil {
			return err
		}
		return compress(dst, snapshot)
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("backup: salt: %w", err)
	}
	header = append(header, salt...)

	aead, err := newAEAD(c, deriveKey(opts.Passphrase, salt))
	if err != nil {
		return err
	}

	var plain bytes.Buffer
	if err := compress(&plain, snapshot); err != nil {
		return err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+plain.Len()+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("backup: nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plain.Bytes(), header)

	if _, err := dst.Write(header); err != nil {
		return err
	}
	_, err = dst.Write(sealed)
	return err
}

// Open validates the header of src and returns the decompressed
// snapshot. The caller must close the returned reader.
func Open(src io.Reader, passphrase []byte) (io.ReadCloser, Cipher, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(src, header); err != nil {
		return nil, 0, ErrNotBackup
	}
	if !bytes.Equal(header[:4], magic[:]) {
		return nil, 0, ErrNotBackup
	}
	c := Cipher(header[5])
	if header[4] != version || c > CipherChaCha20 {
		return nil, c, ErrUnsupported
	}

	payload := src
	if c != CipherNone {
		if len(passphrase) == 0 {
			return nil, c, ErrPassphraseRequired
		}

		salt := make([]byte, saltLength)
		if _, err := io.ReadFull(src, salt); err != nil {
			return nil, c, ErrNotBackup
		}
		header = append(header, salt...)

		aead, err := newAEAD(c, deriveKey(passphrase, salt))
		if err != nil {
			return nil, c, err
		}

		sealed, err := io.ReadAll(io.LimitReader(src, maxSealedSize))
		if err != nil {
			return nil, c, err
		}
		if len(sealed) < aead.NonceSize() {
			return nil, c, ErrDecrypt
		}

		nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
		plain, err := aead.Open(nil, nonce, ciphertext, header)
		if err != nil {
			return nil, c, ErrDecrypt
		}
		payload = bytes.NewReader(plain)
	}

	dec, err := zstd.NewReader(payload)
	if err != nil {
		return nil, c, fmt.Errorf("backup: decompress: %w", err)
	}
	return dec.IOReadCloser(), c, nil
}

func compress(w io.Writer, snapshot func(io.Writer) error) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := snapshot(enc); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

func newAEAD(c Cipher, key []byte) (cipher.AEAD, error) {
	switch c {
	case CipherAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case CipherChaCha20:
		return chacha20poly1305.New(key)
	default:
		return nil, ErrUnsupported
	}
}

func defaultCipher() Cipher {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return CipherAESGCM
	default:
		return CipherChaCha20
	}
}
