package encryptor

import (
	"crypto/md5"
	"encoding/hex"
	"hash"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// digestEncryptor produces one-way, salted digests. It is meant for
// assisted query columns and cannot decrypt.
type digestEncryptor struct {
	typ     string
	salt    []byte
	newHash func() (hash.Hash, error)
}

func newMD5(props map[string]string) (Encryptor, error) {
	return &digestEncryptor{
		typ:     TypeMD5,
		salt:    []byte(props["salt"]),
		newHash: func() (hash.Hash, error) { return md5.New(), nil },
	}, nil
}

func newSHA3(props map[string]string) (Encryptor, error) {
	return &digestEncryptor{
		typ:     TypeSHA3,
		salt:    []byte(props["salt"]),
		newHash: func() (hash.Hash, error) { return sha3.New256(), nil },
	}, nil
}

func newBlake2b(props map[string]string) (Encryptor, error) {
	key := []byte(props["salt"])
	if len(key) > blake2b.Size {
		return nil, errors.Errorf("blake2b salt longer than %d bytes", blake2b.Size)
	}
	return &digestEncryptor{
		typ:     TypeBlake2b,
		newHash: func() (hash.Hash, error) { return blake2b.New256(key) },
	}, nil
}

func (e *digestEncryptor) Type() string {
	return e.typ
}

func (e *digestEncryptor) Encrypt(plain any) (any, error) {
	if plain == nil {
		return nil, nil
	}
	h, err := e.newHash()
	if err != nil {
		return nil, err
	}
	h.Write(plainBytes(plain))
	h.Write(e.salt)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (e *digestEncryptor) Decrypt(any) (any, error) {
	return nil, errors.Errorf("%s encryptor is one-way", e.typ)
}
