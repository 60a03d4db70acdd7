package hashfunction

import (
	"encoding/binary"
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
	"github.com/go-faster/city"
	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"
)

type HashFunctionType int

/* Pre-defined hash functions */
const (
	HashFunctionIdent  = HashFunctionType(0)
	HashFunctionMurmur = HashFunctionType(1)
	HashFunctionCity   = HashFunctionType(2)
)

/* Column types a sharding value may be hashed as */
const (
	ColumnTypeInteger       = "integer"
	ColumnTypeUinteger      = "uinteger"
	ColumnTypeVarcharHashed = "varchar hashed"
	ColumnTypeUUID          = "uuid"
)

var (
	errUnknownColumnType = func(ctype string, hf HashFunctionType) error {
		return srerror.Newf(srerror.SRCFG_INVALID_RULE, "unknown column type '%s' for hash function '%s'", ctype, ToString(hf))
	}
	errUnknownValueType = func(v interface{}, hf HashFunctionType) error {
		return srerror.Newf(srerror.SRUNS_NO_SHARDING_VALUE, "cannot hash value of type %T with %s", v, ToString(hf))
	}
)

func EncodeUInt64(input uint64) []byte {
	const ENCODING_BYTES_BIG = binary.MaxVarintLen64
	const ENCODING_BYTES = 8
	const BOUND = 1 << 56 /* 72057594037927936 */

	sz := ENCODING_BYTES
	if input >= BOUND {
		sz = ENCODING_BYTES_BIG
	}

	buf := make([]byte, sz)
	binary.PutUvarint(buf, input)
	return buf
}

// hashInput normalizes a sharding value into the byte form the hash
// functions consume.
func hashInput(input any, ctype string, hf HashFunctionType) ([]byte, error) {
	switch ctype {
	case ColumnTypeInteger:
		switch v := input.(type) {
		case int64:
			return EncodeUInt64(uint64(v)), nil
		case int:
			return EncodeUInt64(uint64(v)), nil
		case int32:
			return EncodeUInt64(uint64(v)), nil
		default:
			return nil, errUnknownValueType(input, hf)
		}
	case ColumnTypeUinteger:
		switch v := input.(type) {
		case uint64:
			return EncodeUInt64(v), nil
		case uint:
			return EncodeUInt64(uint64(v)), nil
		case uint32:
			return EncodeUInt64(uint64(v)), nil
		default:
			return nil, errUnknownValueType(input, hf)
		}
	case ColumnTypeVarcharHashed, ColumnTypeUUID:
		switch v := input.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		default:
			return nil, errUnknownValueType(input, hf)
		}
	default:
		return nil, errUnknownColumnType(ctype, hf)
	}
}

func ApplyMurmurHashFunction(input any, ctype string) (uint32, error) {
	buf, err := hashInput(input, ctype, HashFunctionMurmur)
	if err != nil {
		return 0, err
	}
	return murmur3.Sum32(buf), nil
}

func ApplyCityHashFunction(input any, ctype string) (uint32, error) {
	buf, err := hashInput(input, ctype, HashFunctionCity)
	if err != nil {
		return 0, err
	}
	return city.Hash32(buf), nil
}

// ApplyHashFunction applies hf to input interpreted as a value of ctype.
// The identity function returns the input unchanged (validating uuids).
func ApplyHashFunction(input any, ctype string, hf HashFunctionType) (any, error) {
	switch hf {
	case HashFunctionIdent:
		if ctype == ColumnTypeUUID {
			s, ok := input.(string)
			if !ok {
				return nil, errUnknownValueType(input, hf)
			}
			if err := uuid.Validate(strings.ToLower(s)); err != nil {
				return nil, err
			}
		}
		return input, nil
	case HashFunctionMurmur:
		v, err := ApplyMurmurHashFunction(input, ctype)
		return uint64(v), err
	case HashFunctionCity:
		v, err := ApplyCityHashFunction(input, ctype)
		return uint64(v), err
	default:
		return nil, srerror.Newf(srerror.SRCFG_UNKNOWN_ALGORITHM, "unknown hash function type: %d", hf)
	}
}

// HashFunctionByName returns the HashFunctionType registered under hfn.
func HashFunctionByName(hfn string) (HashFunctionType, error) {
	switch strings.ToLower(hfn) {
	case "identity", "ident", "":
		return HashFunctionIdent, nil
	case "murmur":
		return HashFunctionMurmur, nil
	case "city":
		return HashFunctionCity, nil
	default:
		return 0, srerror.Newf(srerror.SRCFG_UNKNOWN_ALGORITHM, "unknown hash function type: %s", hfn)
	}
}

func ToString(hf HashFunctionType) string {
	switch hf {
	case HashFunctionIdent:
		return "identity"
	case HashFunctionMurmur:
		return "murmur"
	case HashFunctionCity:
		return "city"
	}
	return ""
}
