package exchange

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json/v2"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for the bundle passphrase KDF.
const (
	argonMemory      = 64 * 1024 // 64 MB
	argonIterations  = 3
	argonParallelism = 4
	argonSaltLength  = 16
	argonKeyLength   = 32
)

// ErrWrongPassphrase is returned when decryption fails authentication.
var ErrWrongPassphrase = errors.New("exchange: wrong passphrase or corrupted bundle")

// ErrNotEncrypted is returned when Decrypt is handed a plaintext bundle.
var ErrNotEncrypted = errors.New("exchange: bundle is not encrypted")

// envelope is the on-disk form of an encrypted bundle. The sentinel field
// lets readers distinguish it from a plaintext bundle without guessing.
type envelope struct {
	Encrypted  bool   `json:"quoteline_encrypted"`
	KDF        string `json:"kdf"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// sentinelProbe reads just the sentinel field.
type sentinelProbe struct {
	Encrypted bool `json:"quoteline_encrypted"`
}

// IsEncrypted reports whether the document is an encryption envelope.
func IsEncrypted(data []byte) bool {
	var probe sentinelProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Encrypted
}

// Encrypt wraps a serialized bundle in an AES-256-GCM envelope keyed by an
// argon2id derivation of the passphrase.
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}

	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(passphrase), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	return json.Marshal(envelope{
		Encrypted:  true,
		KDF:        "argon2id",
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	})
}

// Decrypt unwraps an encryption envelope back to the serialized bundle.
func Decrypt(data []byte, passphrase string) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || !env.Encrypted {
		return nil, ErrNotEncrypted
	}
	if env.KDF != "argon2id" {
		return nil, fmt.Errorf("unsupported kdf %q", env.KDF)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	key := argon2.IDKey([]byte(passphrase), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, ErrWrongPassphrase
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}
