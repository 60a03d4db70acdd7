package keygen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

const (
	TypeSnowflake = "SNOWFLAKE"
	TypeUUID      = "UUID"
	TypeUUIDv7    = "UUIDV7"
)

//go:generate mockgen -source=./keygen.go -destination=../mock/keygen/mock_keygen.go -package=mock

// Generator produces values for a table's generated key column.
type Generator interface {
	Type() string
	NextKey(table string) (any, error)
}

// Factory builds a generator from its configured properties.
type Factory func(props map[string]string) (Generator, error)

var registry = map[string]Factory{
	TypeSnowflake: newSnowflake,
	TypeUUID:      func(map[string]string) (Generator, error) { return uuidGenerator{}, nil },
	TypeUUIDv7:    func(map[string]string) (Generator, error) { return uuidV7Generator{}, nil },
}

// Register installs a custom generator type. It is not safe to call
// concurrently with New.
func Register(typ string, f Factory) {
	registry[strings.ToUpper(typ)] = f
}

func New(typ string, props map[string]string) (Generator, error) {
	f, ok := registry[strings.ToUpper(typ)]
	if !ok {
		return nil, srerror.Newf(srerror.SRCFG_UNKNOWN_ALGORITHM, "unknown key generator type %q", typ)
	}
	return f(props)
}

type snowflakeGenerator struct {
	node *snowflake.Node
}

func newSnowflake(props map[string]string) (Generator, error) {
	var worker int64
	if s, ok := props["worker-id"]; ok {
		w, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "invalid snowflake worker-id %q", s)
		}
		worker = w
	}
	node, err := snowflake.NewNode(worker)
	if err != nil {
		return nil, srerror.New(srerror.SRCFG_INVALID_RULE, fmt.Sprintf("snowflake: %v", err))
	}
	return &snowflakeGenerator{node: node}, nil
}

func (g *snowflakeGenerator) Type() string {
	return TypeSnowflake
}

func (g *snowflakeGenerator) NextKey(string) (any, error) {
	return g.node.Generate().Int64(), nil
}

type uuidGenerator struct{}

func (uuidGenerator) Type() string {
	return TypeUUID
}

func (uuidGenerator) NextKey(string) (any, error) {
	return uuid.NewString(), nil
}

type uuidV7Generator struct{}

func (uuidV7Generator) Type() string {
	return TypeUUIDv7
}

func (uuidV7Generator) NextKey(string) (any, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	return u.String(), nil
}
