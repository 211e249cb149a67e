// Package fieldcrypt encrypts individual log fields before they leave the
// device.
//
// The scheme is AES-256-CBC with PKCS#7 padding and a fresh random IV per
// value. The IV is hex-encoded and prefixed to the base64 ciphertext, so a
// value is self-contained: 32 hex characters of IV followed by the
// ciphertext. The AES key is the SHA-256 digest of a random per-device
// secret kept in an owner-only file.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ivHexLen is the length of the hex-encoded IV prefix.
const ivHexLen = 2 * aes.BlockSize

// Cipher is the opaque field-encryption pair consumed by the sync engine.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// AESCipher implements Cipher with AES-256-CBC.
type AESCipher struct {
	key []byte
}

// New creates a cipher whose AES key is the SHA-256 digest of the secret.
func New(secret []byte) *AESCipher {
	key := sha256.Sum256(secret)
	return &AESCipher{key: key[:]}
}

// Load reads the device secret from path, generating and persisting a new
// 32-byte secret on first use.
func Load(path string) (*AESCipher, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return New(data), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate key material: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, secret, 0600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}

	return New(secret), nil
}

// Encrypt implements Cipher.Encrypt.
func (c *AESCipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	padded := pad([]byte(plaintext))
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt implements Cipher.Decrypt.
func (c *AESCipher) Decrypt(ciphertext string) (string, error) {
	if len(ciphertext) < ivHexLen {
		return "", fmt.Errorf("ciphertext too short to carry an IV")
	}

	iv, err := hex.DecodeString(ciphertext[:ivHexLen])
	if err != nil {
		return "", fmt.Errorf("malformed IV prefix: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext[ivHexLen:])
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: %w", err)
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", fmt.Errorf("ciphertext is not a whole number of blocks")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)

	plain, err := unpad(out)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// pad applies PKCS#7 padding to a full block multiple.
func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// unpad strips and verifies PKCS#7 padding.
func unpad(data []byte) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
