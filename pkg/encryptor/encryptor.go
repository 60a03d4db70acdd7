package encryptor

import (
	"fmt"
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
)

//go:generate mockgen -source=./encryptor.go -destination=../mock/encryptor/mock_encryptor.go -package=mock

// Encryptor transforms plaintext column values. Every implementation is
// deterministic so that equality predicates can be rewritten.
type Encryptor interface {
	Type() string
	Encrypt(plain any) (any, error)
	Decrypt(cipher any) (any, error)
}

type Factory func(props map[string]string) (Encryptor, error)

const (
	TypeAES     = "AES"
	TypeXChaCha = "XCHACHA20"
	TypeMD5     = "MD5"
	TypeSHA3    = "SHA3"
	TypeBlake2b = "BLAKE2B"
)

var registry = map[string]Factory{
	TypeAES:     newAES,
	TypeXChaCha: newXChaCha,
	TypeMD5:     newMD5,
	TypeSHA3:    newSHA3,
	TypeBlake2b: newBlake2b,
}

// Register installs a custom encryptor type. It is not safe to call
// concurrently with New.
func Register(typ string, f Factory) {
	registry[strings.ToUpper(typ)] = f
}

func New(typ string, props map[string]string) (Encryptor, error) {
	f, ok := registry[strings.ToUpper(typ)]
	if !ok {
		return nil, srerror.Newf(srerror.SRCFG_UNKNOWN_ALGORITHM, "unknown encryptor type %q", typ)
	}
	return f(props)
}

func plainBytes(v any) []byte {
	switch x := v.(type) {
	case string:
		return []byte(x)
	case []byte:
		return x
	}
	return []byte(fmt.Sprint(v))
}

func requireProp(typ string, props map[string]string, key string) (string, error) {
	v, ok := props[key]
	if !ok || v == "" {
		return "", srerror.Newf(srerror.SRCFG_INVALID_RULE, "%s encryptor requires property %q", typ, key)
	}
	return v, nil
}
