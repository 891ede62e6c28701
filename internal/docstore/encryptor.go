package docstore

import "io"

// Encryptor transforms snapshot bytes at rest. Recovery snapshots
// hold unsaved user content, so stores run them through an Encryptor
// before touching durable storage.
type Encryptor interface {
	// Encrypt reads plaintext from src and writes ciphertext to dst.
	Encrypt(dst io.Writer, src io.Reader) error

	// Decrypt reads ciphertext from src and writes plaintext to dst.
	Decrypt(dst io.Writer, src io.Reader) error
}
