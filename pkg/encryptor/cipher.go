package encryptor

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"encoding/base64"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

// aesEncryptor is AES in ECB mode with PKCS#7 padding over a key derived
// from the configured secret. Equal plaintexts give equal ciphertexts.
type aesEncryptor struct {
	block cipher.Block
}

func newAES(props map[string]string) (Encryptor, error) {
	secret, err := requireProp(TypeAES, props, "aes-key-value")
	if err != nil {
		return nil, err
	}
	sum := sha1.Sum([]byte(secret))
	block, err := aes.NewCipher(sum[:16])
	if err != nil {
		return nil, err
	}
	return &aesEncryptor{block: block}, nil
}

func (e *aesEncryptor) Type() string {
	return TypeAES
}

func (e *aesEncryptor) Encrypt(plain any) (any, error) {
	if plain == nil {
		return nil, nil
	}
	bs := e.block.BlockSize()
	src := pkcs7Pad(plainBytes(plain), bs)
	dst := make([]byte, len(src))
	for off := 0; off < len(src); off += bs {
		e.block.Encrypt(dst[off:off+bs], src[off:off+bs])
	}
	return base64.StdEncoding.EncodeToString(dst), nil
}

func (e *aesEncryptor) Decrypt(ciphertext any) (any, error) {
	if ciphertext == nil {
		return nil, nil
	}
	src, err := base64.StdEncoding.DecodeString(string(plainBytes(ciphertext)))
	if err != nil {
		return nil, errors.Wrap(err, "aes: decode ciphertext")
	}
	bs := e.block.BlockSize()
	if len(src) == 0 || len(src)%bs != 0 {
		return nil, fmt.Errorf("aes: ciphertext length %d is not a multiple of the block size", len(src))
	}
	dst := make([]byte, len(src))
	for off := 0; off < len(src); off += bs {
		e.block.Decrypt(dst[off:off+bs], src[off:off+bs])
	}
	out, err := pkcs7Unpad(dst, bs)
	if err != nil {
		return nil, err
	}
	return string(out), nil
}

func pkcs7Pad(b []byte, bs int) []byte {
	n := bs - len(b)%bs
	return append(append([]byte{}, b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, bs int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > bs || n > len(b) {
		return nil, errors.New("aes: bad padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("aes: bad padding")
		}
	}
	return b[:len(b)-n], nil
}

// xchachaEncryptor is XChaCha20-Poly1305 with the nonce derived from a keyed
// BLAKE2b hash of the plaintext, which keeps it deterministic.
type xchachaEncryptor struct {
	aead     cipher.AEAD
	nonceKey []byte
}

func newXChaCha(props map[string]string) (Encryptor, error) {
	secret, err := requireProp(TypeXChaCha, props, "xchacha-key-value")
	if err != nil {
		return nil, err
	}
	key := blake2b.Sum256([]byte(secret))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	nonceKey := blake2b.Sum256(append([]byte("nonce:"), secret...))
	return &xchachaEncryptor{aead: aead, nonceKey: nonceKey[:]}, nil
}

func (e *xchachaEncryptor) Type() string {
	return TypeXChaCha
}

func (e *xchachaEncryptor) nonce(plain []byte) ([]byte, error) {
	h, err := blake2b.New(chacha20poly1305.NonceSizeX, e.nonceKey)
	if err != nil {
		return nil, err
	}
	h.Write(plain)
	return h.Sum(nil), nil
}

func (e *xchachaEncryptor) Encrypt(plain any) (any, error) {
	if plain == nil {
		return nil, nil
	}
	p := plainBytes(plain)
	nonce, err := e.nonce(p)
	if err != nil {
		return nil, err
	}
	out := e.aead.Seal(nonce, nonce, p, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (e *xchachaEncryptor) Decrypt(ciphertext any) (any, error) {
	if ciphertext == nil {
		return nil, nil
	}
	src, err := base64.StdEncoding.DecodeString(string(plainBytes(ciphertext)))
	if err != nil {
		return nil, errors.Wrap(err, "xchacha20: decode ciphertext")
	}
	if len(src) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("xchacha20: ciphertext too short")
	}
	out, err := e.aead.Open(nil, src[:chacha20poly1305.NonceSizeX], src[chacha20poly1305.NonceSizeX:], nil)
	if err != nil {
		return nil, errors.Wrap(err, "xchacha20: open")
	}
	return string(out), nil
}
