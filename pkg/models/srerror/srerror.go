package srerror

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration errors: the rule set cannot serve the request.
const (
	SRCFG_UNKNOWN_TABLE      = "SRCFG01"
	SRCFG_BINDING_MISMATCH   = "SRCFG02"
	SRCFG_WEIGHT_SUM         = "SRCFG03"
	SRCFG_NO_ENCRYPTOR       = "SRCFG04"
	SRCFG_SHARD_OUT_OF_RANGE = "SRCFG05"
	SRCFG_UNKNOWN_ALGORITHM  = "SRCFG06"
	SRCFG_INVALID_RULE       = "SRCFG07"
	SRCFG_UNKNOWN_DATASOURCE = "SRCFG08"
	SRCFG_NO_KEY_GENERATOR   = "SRCFG09"
)

// Unsupported-operation errors: the statement itself cannot be executed safely.
const (
	SRUNS_CROSS_TABLE          = "SRUNS01"
	SRUNS_SHARDING_KEY_UPDATE  = "SRUNS02"
	SRUNS_DUPLICATE_KEY_UPDATE = "SRUNS03"
	SRUNS_MULTI_SHARD_LIMIT    = "SRUNS04"
	SRUNS_MISSING_GENERATED    = "SRUNS05"
	SRUNS_SUBQUERY_MISMATCH    = "SRUNS06"
	SRUNS_CROSS_DATASOURCE     = "SRUNS07"
	SRUNS_INSERT_SELECT_TABLES = "SRUNS08"
	SRUNS_NO_SHARDING_VALUE    = "SRUNS09"
	SRUNS_BAD_SHARDING_VALUE   = "SRUNS10"
)

const (
	SR_UNEXPECTED = "SRU"
)

type ErrorKind int

const (
	KindUnexpected = ErrorKind(iota)
	KindConfiguration
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindUnsupported:
		return "unsupported"
	}
	return "unexpected"
}

var existingErrorCodeMap = map[string]string{
	SRCFG_UNKNOWN_TABLE:      "unknown logical table",
	SRCFG_BINDING_MISMATCH:   "binding table shard index mismatch",
	SRCFG_WEIGHT_SUM:         "load balance weights do not sum to one",
	SRCFG_NO_ENCRYPTOR:       "no such encryptor",
	SRCFG_SHARD_OUT_OF_RANGE: "sharding target outside data nodes",
	SRCFG_UNKNOWN_ALGORITHM:  "unknown algorithm type",
	SRCFG_INVALID_RULE:       "invalid rule configuration",
	SRCFG_UNKNOWN_DATASOURCE: "unknown data source",
	SRCFG_NO_KEY_GENERATOR:   "no key generator",

	SRUNS_CROSS_TABLE:          "cross table statement unsupported",
	SRUNS_SHARDING_KEY_UPDATE:  "sharding key update unsupported",
	SRUNS_DUPLICATE_KEY_UPDATE: "sharding key update on duplicate key unsupported",
	SRUNS_MULTI_SHARD_LIMIT:    "limit across multiple shards unsupported",
	SRUNS_MISSING_GENERATED:    "generated key column missing",
	SRUNS_SUBQUERY_MISMATCH:    "subquery sharding value mismatch",
	SRUNS_CROSS_DATASOURCE:     "cross data source statement unsupported",
	SRUNS_INSERT_SELECT_TABLES: "insert select across unrelated tables unsupported",
	SRUNS_NO_SHARDING_VALUE:    "insert row has no resolvable sharding value",
	SRUNS_BAD_SHARDING_VALUE:   "sharding value does not fit the algorithm",
}

// GetMessageByCode returns the short description of an error code.
func GetMessageByCode(errorCode string) string {
	rep, ok := existingErrorCodeMap[errorCode]
	if ok {
		return rep
	}
	return "unexpected error"
}

// KindByCode maps an error code onto its taxonomy kind.
func KindByCode(errorCode string) ErrorKind {
	switch {
	case strings.HasPrefix(errorCode, "SRCFG"):
		return KindConfiguration
	case strings.HasPrefix(errorCode, "SRUNS"):
		return KindUnsupported
	}
	return KindUnexpected
}

var _ error = &RouterError{}

type RouterError struct {
	Err       error
	ErrorCode string
	ErrHint   string
}

func New(errorCode string, msg string) *RouterError {
	return &RouterError{
		Err:       errors.New(msg),
		ErrorCode: errorCode,
	}
}

func Newf(errorCode string, format string, a ...any) *RouterError {
	return &RouterError{
		Err:       fmt.Errorf(format, a...),
		ErrorCode: errorCode,
	}
}

func NewByCode(errorCode string) *RouterError {
	return New(errorCode, GetMessageByCode(errorCode))
}

func (er *RouterError) Error() string {
	return er.Err.Error()
}

func (er *RouterError) Unwrap() error {
	return er.Err
}

func (er *RouterError) Kind() ErrorKind {
	return KindByCode(er.ErrorCode)
}

// WithHint attaches an operator-facing hint.
func (er *RouterError) WithHint(hint string) *RouterError {
	er.ErrHint = hint
	return er
}

// Kind reports the taxonomy kind of err, looking through wrapping.
func Kind(err error) ErrorKind {
	var re *RouterError
	if errors.As(err, &re) {
		return re.Kind()
	}
	return KindUnexpected
}

func IsConfiguration(err error) bool {
	return err != nil && Kind(err) == KindConfiguration
}

func IsUnsupported(err error) bool {
	return err != nil && Kind(err) == KindUnsupported
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code string) bool {
	var re *RouterError
	if errors.As(err, &re) {
		return re.ErrorCode == code
	}
	return false
}
