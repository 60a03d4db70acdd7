package encrypt

import (
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/config"
	"github.com/apache/shardingsphere-sub091/pkg/encryptor"
	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
)

type Column struct {
	Logic               string
	CipherColumn        string
	AssistedQueryColumn string
	PlainColumn         string

	Encryptor         encryptor.Encryptor
	AssistedEncryptor encryptor.Encryptor

	QueryWithCipher bool
}

type Table struct {
	Name    string
	Columns map[string]*Column
}

type Rule struct {
	Tables map[string]*Table
}

func NewRule(tables ...*Table) *Rule {
	r := &Rule{Tables: map[string]*Table{}}
	for _, t := range tables {
		r.Tables[strings.ToLower(t.Name)] = t
	}
	return r
}

// Column returns the encryption settings of a logical column.
func (r *Rule) Column(table, column string) (*Column, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.Tables[strings.ToLower(table)]
	if !ok {
		return nil, false
	}
	c, ok := t.Columns[strings.ToLower(column)]
	return c, ok
}

func (r *Rule) IsEncrypted(table, column string) bool {
	_, ok := r.Column(table, column)
	return ok
}

func RuleFromConfig(cfg *config.EncryptCfg) (*Rule, error) {
	if cfg == nil {
		return NewRule(), nil
	}
	encryptors := map[string]encryptor.Encryptor{}
	for name, ec := range cfg.Encryptors {
		if ec == nil {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "encryptor %q has no definition", name)
		}
		e, err := encryptor.New(ec.Type, ec.Props)
		if err != nil {
			return nil, err
		}
		encryptors[name] = e
	}

	var tables []*Table
	for tname, tc := range cfg.Tables {
		if tc == nil {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "encrypt table %q has no definition", tname)
		}
		t := &Table{Name: strings.ToLower(tname), Columns: map[string]*Column{}}
		for cname, cc := range tc.Columns {
			if cc == nil {
				return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "encrypt column %s.%s has no definition", tname, cname)
			}
			if cc.CipherColumn == "" {
				return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "encrypt column %s.%s has no cipher column", tname, cname)
			}
			enc, ok := encryptors[cc.Encryptor]
			if !ok {
				return nil, srerror.Newf(srerror.SRCFG_NO_ENCRYPTOR, "encrypt column %s.%s references unknown encryptor %q", tname, cname, cc.Encryptor)
			}
			col := &Column{
				Logic:               strings.ToLower(cname),
				CipherColumn:        cc.CipherColumn,
				AssistedQueryColumn: cc.AssistedQueryColumn,
				PlainColumn:         cc.PlainColumn,
				Encryptor:           enc,
				QueryWithCipher:     cfg.QueryWithCipher(tc, cc),
			}
			if cc.AssistedQueryColumn != "" {
				aenc, ok := encryptors[cc.AssistedQueryEncryptor]
				if !ok {
					return nil, srerror.Newf(srerror.SRCFG_NO_ENCRYPTOR,
						"encrypt column %s.%s references unknown assisted query encryptor %q", tname, cname, cc.AssistedQueryEncryptor)
				}
				col.AssistedEncryptor = aenc
			}
			t.Columns[col.Logic] = col
		}
		tables = append(tables, t)
	}
	return NewRule(tables...), nil
}
