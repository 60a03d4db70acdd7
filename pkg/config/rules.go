package config

import (
	"encoding/json"
	"os"

	"github.com/apache/shardingsphere-sub091/pkg/srlog"
	"github.com/pkg/errors"
)

// RulesCfg is the declarative rule set the router is built from.
type RulesCfg struct {
	LogLevel string `json:"log_level" toml:"log_level" yaml:"log_level"`

	// DataSources are the physical data source names. Entries may use inline
	// syntax such as "ds_${0..3}".
	DataSources       []string `json:"data_sources" toml:"data_sources" yaml:"data_sources"`
	DefaultDataSource string   `json:"default_data_source" toml:"default_data_source" yaml:"default_data_source"`

	Sharding *ShardingCfg `json:"sharding" toml:"sharding" yaml:"sharding"`

	// SingleTables maps unsharded tables to the data source holding them.
	SingleTables map[string]string `json:"single_tables" toml:"single_tables" yaml:"single_tables"`

	Encrypt            *EncryptCfg            `json:"encrypt" toml:"encrypt" yaml:"encrypt"`
	ReadwriteSplitting *ReadwriteSplittingCfg `json:"readwrite_splitting" toml:"readwrite_splitting" yaml:"readwrite_splitting"`
}

type ShardingCfg struct {
	Tables          map[string]*ShardingTableCfg `json:"tables" toml:"tables" yaml:"tables"`
	BindingTables   [][]string                   `json:"binding_tables" toml:"binding_tables" yaml:"binding_tables"`
	BroadcastTables []string                     `json:"broadcast_tables" toml:"broadcast_tables" yaml:"broadcast_tables"`

	DefaultDatabaseStrategy *StrategyCfg `json:"default_database_strategy" toml:"default_database_strategy" yaml:"default_database_strategy"`
	DefaultTableStrategy    *StrategyCfg `json:"default_table_strategy" toml:"default_table_strategy" yaml:"default_table_strategy"`

	Algorithms    map[string]*AlgorithmCfg `json:"sharding_algorithms" toml:"sharding_algorithms" yaml:"sharding_algorithms"`
	KeyGenerators map[string]*AlgorithmCfg `json:"key_generators" toml:"key_generators" yaml:"key_generators"`
}

type ShardingTableCfg struct {
	// ActualDataNodes are "ds.table" entries, each expanded with inline
	// syntax. "ds_0.t_order_${0..1}" yields two nodes on ds_0.
	ActualDataNodes []string `json:"actual_data_nodes" toml:"actual_data_nodes" yaml:"actual_data_nodes"`

	DatabaseStrategy    *StrategyCfg    `json:"database_strategy" toml:"database_strategy" yaml:"database_strategy"`
	TableStrategy       *StrategyCfg    `json:"table_strategy" toml:"table_strategy" yaml:"table_strategy"`
	KeyGenerateStrategy *KeyGenerateCfg `json:"key_generate_strategy" toml:"key_generate_strategy" yaml:"key_generate_strategy"`
}

// StrategyCfg binds a sharding column to a named algorithm. None disables a
// default strategy for one table.
type StrategyCfg struct {
	Column    string `json:"sharding_column" toml:"sharding_column" yaml:"sharding_column"`
	Algorithm string `json:"algorithm_name" toml:"algorithm_name" yaml:"algorithm_name"`
	None      bool   `json:"none" toml:"none" yaml:"none"`
}

type KeyGenerateCfg struct {
	Column    string `json:"column" toml:"column" yaml:"column"`
	Generator string `json:"key_generator_name" toml:"key_generator_name" yaml:"key_generator_name"`
}

// AlgorithmCfg is a typed, property-configured plug-in: a sharding
// algorithm, key generator, encryptor or load balancer.
type AlgorithmCfg struct {
	Type  string            `json:"type" toml:"type" yaml:"type"`
	Props map[string]string `json:"props" toml:"props" yaml:"props"`
}

type EncryptCfg struct {
	Encryptors map[string]*AlgorithmCfg    `json:"encryptors" toml:"encryptors" yaml:"encryptors"`
	Tables     map[string]*EncryptTableCfg `json:"tables" toml:"tables" yaml:"tables"`
	// QueryWithCipherColumn defaults to true.
	QueryWithCipherColumn *bool `json:"query_with_cipher_column" toml:"query_with_cipher_column" yaml:"query_with_cipher_column"`
}

type EncryptTableCfg struct {
	Columns               map[string]*EncryptColumnCfg `json:"columns" toml:"columns" yaml:"columns"`
	QueryWithCipherColumn *bool                        `json:"query_with_cipher_column" toml:"query_with_cipher_column" yaml:"query_with_cipher_column"`
}

type EncryptColumnCfg struct {
	CipherColumn           string `json:"cipher_column" toml:"cipher_column" yaml:"cipher_column"`
	AssistedQueryColumn    string `json:"assisted_query_column" toml:"assisted_query_column" yaml:"assisted_query_column"`
	PlainColumn            string `json:"plain_column" toml:"plain_column" yaml:"plain_column"`
	Encryptor              string `json:"encryptor_name" toml:"encryptor_name" yaml:"encryptor_name"`
	AssistedQueryEncryptor string `json:"assisted_query_encryptor_name" toml:"assisted_query_encryptor_name" yaml:"assisted_query_encryptor_name"`
	QueryWithCipherColumn  *bool  `json:"query_with_cipher_column" toml:"query_with_cipher_column" yaml:"query_with_cipher_column"`
}

type ReadwriteSplittingCfg struct {
	Groups        map[string]*ReadwriteGroupCfg `json:"data_sources" toml:"data_sources" yaml:"data_sources"`
	LoadBalancers map[string]*AlgorithmCfg      `json:"load_balancers" toml:"load_balancers" yaml:"load_balancers"`
}

type ReadwriteGroupCfg struct {
	WriteDataSource string   `json:"write_data_source_name" toml:"write_data_source_name" yaml:"write_data_source_name"`
	ReadDataSources []string `json:"read_data_source_names" toml:"read_data_source_names" yaml:"read_data_source_names"`
	LoadBalancer    string   `json:"load_balancer_name" toml:"load_balancer_name" yaml:"load_balancer_name"`
	// TransactionalReadQueryStrategy is FIXED, DYNAMIC or PRIMARY.
	TransactionalReadQueryStrategy string `json:"transactional_read_query_strategy" toml:"transactional_read_query_strategy" yaml:"transactional_read_query_strategy"`
}

// LoadRulesCfg reads a rule file in toml, yaml or json format.
func LoadRulesCfg(cfgPath string) (*RulesCfg, error) {
	file, err := os.Open(cfgPath)
	if err != nil {
		return nil, err
	}
	defer func(file *os.File) {
		if err := file.Close(); err != nil {
			srlog.Zero.Error().Err(err).Str("path", cfgPath).Msg("failed to close rules config")
		}
	}(file)

	var cfg RulesCfg
	if err := initConfig(file, &cfg); err != nil {
		return nil, errors.Wrapf(err, "decode rules config %s", cfgPath)
	}

	configBytes, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	srlog.Zero.Debug().Str("path", cfgPath).RawJSON("config", configBytes).Msg("loaded rules config")
	return &cfg, nil
}

// QueryWithCipher resolves the column, table and global settings, most
// specific first.
func (e *EncryptCfg) QueryWithCipher(table *EncryptTableCfg, column *EncryptColumnCfg) bool {
	for _, v := range []*bool{column.QueryWithCipherColumn, table.QueryWithCipherColumn, e.QueryWithCipherColumn} {
		if v != nil {
			return *v
		}
	}
	return true
}
