package encrypt

import (
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
)

// Transformer converts logical plaintext values into their stored
// representation. It only reads the rule.
type Transformer struct {
	rule *Rule
}

func NewTransformer(rule *Rule) *Transformer {
	return &Transformer{rule: rule}
}

func (t *Transformer) column(table, column string) (*Column, error) {
	c, ok := t.rule.Column(table, column)
	if !ok || c.Encryptor == nil {
		return nil, srerror.Newf(srerror.SRCFG_NO_ENCRYPTOR, "no encryptor configured for column %s.%s", table, column)
	}
	return c, nil
}

// EncryptForWrite encrypts values for the cipher column. NULL stays NULL.
func (t *Transformer) EncryptForWrite(table, column string, values []any) ([]any, error) {
	c, err := t.column(table, column)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		if out[i], err = c.Encryptor.Encrypt(v); err != nil {
			return nil, srerror.Newf(srerror.SR_UNEXPECTED, "encrypt %s.%s: %v", table, column, err)
		}
	}
	return out, nil
}

// AssistedQueryValue computes the assisted query column value for v.
func (t *Transformer) AssistedQueryValue(table, column string, v any) (any, error) {
	c, err := t.column(table, column)
	if err != nil {
		return nil, err
	}
	if c.AssistedEncryptor == nil {
		return nil, srerror.Newf(srerror.SRCFG_NO_ENCRYPTOR, "no assisted query encryptor configured for column %s.%s", table, column)
	}
	if v == nil {
		return nil, nil
	}
	res, err := c.AssistedEncryptor.Encrypt(v)
	if err != nil {
		return nil, srerror.Newf(srerror.SR_UNEXPECTED, "assisted query value %s.%s: %v", table, column, err)
	}
	return res, nil
}

// Decrypt turns cipher column values back into plaintext.
func (t *Transformer) Decrypt(table, column string, values []any) ([]any, error) {
	c, err := t.column(table, column)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		if out[i], err = c.Encryptor.Decrypt(v); err != nil {
			return nil, srerror.Newf(srerror.SR_UNEXPECTED, "decrypt %s.%s: %v", table, column, err)
		}
	}
	return out, nil
}

// QueryWithCipher reports whether predicates on the column are answered from
// the cipher (or assisted) column rather than the plain column.
func (t *Transformer) QueryWithCipher(table, column string) bool {
	c, ok := t.rule.Column(table, column)
	return ok && c.QueryWithCipher
}

// QueryValue maps a predicate value on a logical column to the physical
// column it is compared against and the value stored there. ok is false for
// columns that are not encrypted or are queried through the plain column.
func (t *Transformer) QueryValue(table, column string, v any) (physical string, value any, ok bool, err error) {
	c, found := t.rule.Column(table, column)
	if !found || (!c.QueryWithCipher && c.PlainColumn != "") {
		return "", nil, false, nil
	}
	if c.AssistedQueryColumn != "" {
		value, err = t.AssistedQueryValue(table, column, v)
		return c.AssistedQueryColumn, value, err == nil, err
	}
	enc, err := t.EncryptForWrite(table, column, []any{v})
	if err != nil {
		return "", nil, false, err
	}
	return c.CipherColumn, enc[0], true, nil
}

// IsCipherColumn reports whether physical is the cipher column of some
// encrypted column of table.
func (t *Transformer) IsCipherColumn(table, physical string) bool {
	_, ok := t.lookupPhysical(table, physical, func(c *Column) string { return c.CipherColumn })
	return ok
}

// LogicalColumnFor maps a cipher, assisted query or plain column back to its
// logical column.
func (t *Transformer) LogicalColumnFor(table, physical string) (string, bool) {
	for _, field := range []func(c *Column) string{
		func(c *Column) string { return c.CipherColumn },
		func(c *Column) string { return c.AssistedQueryColumn },
		func(c *Column) string { return c.PlainColumn },
	} {
		if c, ok := t.lookupPhysical(table, physical, field); ok {
			return c.Logic, true
		}
	}
	return "", false
}

func (t *Transformer) lookupPhysical(table, physical string, field func(c *Column) string) (*Column, bool) {
	if t.rule == nil {
		return nil, false
	}
	tbl, ok := t.rule.Tables[strings.ToLower(table)]
	if !ok {
		return nil, false
	}
	for _, c := range tbl.Columns {
		if f := field(c); f != "" && strings.EqualFold(f, physical) {
			return c, true
		}
	}
	return nil, false
}
