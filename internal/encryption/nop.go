package encryption

import (
	"io"

	"dockeep/internal/docstore"
)

// NopEncryptor passes bytes through unchanged. Used when snapshot
// encryption is disabled, and in tests.
type NopEncryptor struct{}

var _ docstore.Encryptor = (*NopEncryptor)(nil)

func NewNopEncryptor() *NopEncryptor { return &NopEncryptor{} }

func (*NopEncryptor) Encrypt(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

func (*NopEncryptor) Decrypt(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}
