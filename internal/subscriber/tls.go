package subscriber

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

// tlsConfig builds the TLS configuration for the broker connection from the
// settings. Client certificates and an optional password-protected key file
// are supported for brokers that require mutual TLS.
func (s Settings) tlsConfig() (*tls.Config, error) {
	config := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS13,
	}

	// certFile and keyFile must be provided together.
	if s.CertFile != "" || s.KeyFile != "" {
		var cert tls.Certificate
		var err error

		if s.KeyFilePassword != "" {
			cert, err = loadX509KeyPairWithPassword(
				s.CertFile,
				s.KeyFile,
				s.KeyFilePassword,
			)
		} else {
			cert, err = tls.LoadX509KeyPair(s.CertFile, s.KeyFile)
		}
		if err != nil {
			return nil, &SettingsError{
				Property: "CertFile/KeyFile",
				Message:  "X509 key pair cannot be loaded: " + err.Error(),
			}
		}

		config.Certificates = []tls.Certificate{cert}
	}

	if s.CAFile != "" {
		caCertPool, err := loadCACertPool(s.CAFile)
		if err != nil {
			return nil, &SettingsError{
				Property: "CAFile",
				Message:  "CA certificate pool cannot be loaded",
			}
		}
		config.RootCAs = caCertPool
	}

	return config, nil
}

// loadCACertPool loads a CA certificate pool from the specified file.
func loadCACertPool(caFile string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("no certificates found in CA file")
	}
	return caCertPool, nil
}

// loadX509KeyPairWithPassword loads a key pair whose private key file is
// encrypted with PBKDF2-derived AES-GCM.
func loadX509KeyPairWithPassword(
	certFile,
	keyFile,
	password string,
) (tls.Certificate, error) {
	certPEMBlock, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	keyPEMBlock, err := os.ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	keyDERBlock, _ := pem.Decode(keyPEMBlock)
	if keyDERBlock == nil {
		return tls.Certificate{}, errors.New(
			"failed to decode PEM block containing private key",
		)
	}

	// x509.DecryptPEMBlock is deprecated due to insecurity,
	// and x509 library doesn't want to support it:
	// https://github.com/golang/go/issues/8860
	decryptedDERBlock, err := decryptPEMBlock(keyDERBlock, []byte(password))
	if err != nil {
		return tls.Certificate{}, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  keyDERBlock.Type,
		Bytes: decryptedDERBlock,
	})

	return tls.X509KeyPair(certPEMBlock, keyPEM)
}

// decryptPEMBlock decrypts a PEM block using PBKDF2 and AES-GCM.
func decryptPEMBlock(block *pem.Block, password []byte) ([]byte, error) {
	if block == nil {
		return nil, errors.New("PEM block is nil")
	}

	if len(block.Bytes) < 8 {
		return nil, errors.New("PEM block is too short to contain a salt")
	}

	// Salt is the first 8 bytes.
	salt := block.Bytes[:8]
	key := pbkdf2.Key(password, salt, 10000, 32, sha3.New256)

	return aesGCMDecrypt(block.Bytes[8:], key)
}

// aesGCMDecrypt decrypts data using AES-GCM mode with a 12-byte nonce prefix.
func aesGCMDecrypt(encrypted, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(encrypted) < gcm.NonceSize() {
		return nil, errors.New("ciphertext in PEM block is too short")
	}

	nonce, ciphertext := encrypted[:gcm.NonceSize()], encrypted[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
