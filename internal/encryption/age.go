// Package encryption provides the at-rest encryptors for recovery
// snapshots.
package encryption

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"dockeep/internal/docstore"
)

// AgeEncryptor implements docstore.Encryptor using filippo.io/age
// with an X25519 identity stored in a key file. The same identity is
// used for both sealing and opening snapshots, since snapshots are
// only ever read back by the machine that wrote them.
type AgeEncryptor struct {
	identityPath string
}

var _ docstore.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates an AgeEncryptor reading its identity from
// the given file.
func NewAgeEncryptor(identityPath string) *AgeEncryptor {
	return &AgeEncryptor{identityPath: identityPath}
}

// Setup generates a new X25519 identity and writes it to the identity
// file. It refuses to overwrite an existing key.
func (e *AgeEncryptor) Setup() error {
	if _, err := os.Stat(e.identityPath); err == nil {
		return fmt.Errorf("identity file already exists at %s", e.identityPath)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(e.identityPath), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(e.identityPath, []byte(identity.String()+"\n"), 0600); err != nil {
		return fmt.Errorf("writing identity file: %w", err)
	}
	return nil
}

// Encrypt reads plaintext from src and writes age-encrypted
// ciphertext to dst.
func (e *AgeEncryptor) Encrypt(dst io.Writer, src io.Reader) error {
	identity, err := e.loadIdentity()
	if err != nil {
		return err
	}

	encWriter, err := age.Encrypt(dst, identity.Recipient())
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(encWriter, src); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Decrypt reads age ciphertext from src and writes plaintext to dst.
func (e *AgeEncryptor) Decrypt(dst io.Writer, src io.Reader) error {
	identity, err := e.loadIdentity()
	if err != nil {
		return err
	}

	decReader, err := age.Decrypt(src, identity)
	if err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	if _, err := io.Copy(dst, decReader); err != nil {
		return fmt.Errorf("reading decrypted data: %w", err)
	}
	return nil
}

func (e *AgeEncryptor) loadIdentity() (*age.X25519Identity, error) {
	data, err := os.ReadFile(e.identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}

	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	return identity, nil
}
