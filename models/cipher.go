package models

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"io"

	"github.com/rohanthewiz/serr"
	"golang.org/x/crypto/argon2"
)

// ============================================================================
// At-Rest Value Encryption
//
// AES-256-GCM over the JSON text of each stored value. The 32-byte key is
// derived from a user passphrase with argon2id; the random derivation salt
// is persisted (unencrypted) under a reserved key in the kv table so the
// same passphrase reproduces the same key after restart.
//
// Design decision: derive rather than require an exactly-32-byte key. A
// passphrase is what a user actually has, and argon2id makes brute-forcing
// the store file expensive.
// ============================================================================

// saltKey is the reserved kv key holding the hex-encoded argon2 salt.
// It is read and written directly, bypassing the cipher.
const saltKey = "kv._salt"

// argon2 parameters: one pass over 64 MiB with 4 lanes, per the argon2id
// recommendations for interactive use.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

type valueCipher struct {
	aead cipher.AEAD
}

// newValueCipher loads or creates the salt row and derives the AEAD key.
func newValueCipher(db *sql.DB, passphrase string) (*valueCipher, error) {
	salt, err := loadOrCreateSalt(db)
	if err != nil {
		return nil, err
	}

	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, serr.Wrap(err, "failed to create AES cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, serr.Wrap(err, "failed to create GCM")
	}

	return &valueCipher{aead: aead}, nil
}

// loadOrCreateSalt returns the persisted salt, generating and storing a
// fresh 16-byte one on first use.
func loadOrCreateSalt(db *sql.DB) ([]byte, error) {
	var encoded string
	err := db.QueryRow(`SELECT value FROM kv WHERE key = ?`, saltKey).Scan(&encoded)
	if err == nil {
		salt, decErr := hex.DecodeString(encoded)
		if decErr != nil {
			return nil, serr.Wrap(decErr, "stored salt is corrupt")
		}
		return salt, nil
	}
	if err != sql.ErrNoRows {
		return nil, serr.Wrap(err, "failed to read salt")
	}

	salt := make([]byte, 16)
	if _, err = io.ReadFull(rand.Reader, salt); err != nil {
		return nil, serr.Wrap(err, "failed to generate salt")
	}
	_, err = db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)`, saltKey, hex.EncodeToString(salt))
	if err != nil {
		return nil, serr.Wrap(err, "failed to persist salt")
	}
	return salt, nil
}

// encrypt seals plaintext and returns base64(nonce || ciphertext).
func (c *valueCipher) encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", serr.Wrap(err, "failed to generate nonce")
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// decrypt reverses encrypt. A wrong passphrase surfaces here as a GCM
// authentication failure.
func (c *valueCipher) decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", serr.Wrap(err, "failed to decode stored value")
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", serr.New("stored value too short to contain nonce")
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", serr.Wrap(err, "failed to decrypt stored value (wrong passphrase?)")
	}
	return string(plain), nil
}
