package credentials

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	saltSize = 16

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// EncryptedFileStore keeps the key sealed with XChaCha20-Poly1305 under a
// passphrase-derived key. File layout: salt || nonce || ciphertext.
type EncryptedFileStore struct {
	path       string
	passphrase []byte
}

func NewEncryptedFileStore(path, passphrase string) (*EncryptedFileStore, error) {
	if passphrase == "" {
		return nil, errors.New("credentials: empty passphrase")
	}
	return &EncryptedFileStore{path: path, passphrase: []byte(passphrase)}, nil
}

func (s *EncryptedFileStore) Get(ctx context.Context) (string, bool, error) {
	blob, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read key file: %w", err)
	}
	if len(blob) < saltSize+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return "", false, ErrDecrypt
	}
	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	sealed := blob[saltSize+chacha20poly1305.NonceSizeX:]

	aead, err := s.aead(salt)
	if err != nil {
		return "", false, err
	}
	plain, err := aead.Open(nil, nonce, sealed, additionalData())
	if err != nil {
		return "", false, ErrDecrypt
	}
	return string(plain), true, nil
}

// Set uses a fresh salt and nonce on every write.
func (s *EncryptedFileStore) Set(ctx context.Context, key string) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	aead, err := s.aead(salt)
	if err != nil {
		return err
	}

	blob := make([]byte, 0, saltSize+len(nonce)+len(key)+aead.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = aead.Seal(blob, nonce, []byte(key), additionalData())
	return writeFileAtomic(s.path, blob)
}

func (s *EncryptedFileStore) Clear(ctx context.Context) error {
	return NewFileStore(s.path).Clear(ctx)
}

func (s *EncryptedFileStore) aead(salt []byte) (cipher.AEAD, error) {
	k, err := scrypt.Key(s.passphrase, salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(k)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return aead, nil
}

// Binds the ciphertext to this key slot so a blob cannot be replayed into
// another one.
func additionalData() []byte {
	return []byte(PreferencesNode + "/" + KeyName)
}
