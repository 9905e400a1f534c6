// Package aescbc implements the payload cipher used on the bedwatch wire:
// AES-128 in CBC mode with PKCS7 padding and a fixed key and IV shared with
// the sensor firmware.
package aescbc

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"unicode/utf8"
)

// DecryptionError indicates that a ciphertext could not be turned into a
// plaintext string. It may wrap an underlying error using Go standard error
// wrapping.
type DecryptionError struct {
	wrapped error
	message string
}

func (e *DecryptionError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("decryption failed: %s: %v", e.message, e.wrapped)
	}
	return "decryption failed: " + e.message
}

func (e *DecryptionError) Unwrap() error {
	return e.wrapped
}

// Cipher decrypts wire payloads with a fixed key and IV. Note that reusing a
// single IV for every message under the same key can leak equality of leading
// plaintext blocks; this matches the deployed sensor firmware and is not
// corrected here.
type Cipher struct {
	block cipher.Block
	iv    []byte
}

// New builds a Cipher from a 16-byte key and a 16-byte IV.
func New(key, iv []byte) (*Cipher, error) {
	if len(key) != aes.BlockSize {
		return nil, fmt.Errorf(
			"key must be %d bytes, got %d", aes.BlockSize, len(key),
		)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf(
			"iv must be %d bytes, got %d", aes.BlockSize, len(iv),
		)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return &Cipher{block: block, iv: iv}, nil
}

// Decrypt decrypts a ciphertext block, strips its PKCS7 padding, and returns
// the plaintext as a string. It fails with a DecryptionError when the
// ciphertext is not block-aligned, the padding is inconsistent, or the
// plaintext is not valid UTF-8.
func (c *Cipher) Decrypt(ciphertext []byte) (string, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", &DecryptionError{
			message: fmt.Sprintf(
				"ciphertext length %d is not a multiple of the block size",
				len(ciphertext),
			),
		}
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err := pkcs7Unpad(plaintext)
	if err != nil {
		return "", &DecryptionError{message: "invalid padding", wrapped: err}
	}

	if !utf8.Valid(plaintext) {
		return "", &DecryptionError{message: "plaintext is not valid UTF-8"}
	}

	return string(plaintext), nil
}

// Encrypt pads the plaintext with PKCS7 and encrypts it. It is the inverse of
// Decrypt and exists for the publisher side and for tests.
func (c *Cipher) Encrypt(plaintext string) []byte {
	padded := pkcs7Pad([]byte(plaintext))
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(ciphertext, padded)
	return ciphertext
}

func pkcs7Pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("bad padding length %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding byte %#x", b)
		}
	}
	return data[:len(data)-n], nil
}
