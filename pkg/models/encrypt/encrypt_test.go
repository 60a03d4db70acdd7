package encrypt_test

import (
	"errors"
	"testing"

	"github.com/apache/shardingsphere-sub091/pkg/config"
	mockenc "github.com/apache/shardingsphere-sub091/pkg/mock/encryptor"
	"github.com/apache/shardingsphere-sub091/pkg/models/encrypt"
	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func mockedRule(t *testing.T) (*encrypt.Transformer, *mockenc.MockEncryptor, *mockenc.MockEncryptor) {
	ctrl := gomock.NewController(t)
	enc := mockenc.NewMockEncryptor(ctrl)
	assisted := mockenc.NewMockEncryptor(ctrl)

	rule := encrypt.NewRule(&encrypt.Table{
		Name: "t_user",
		Columns: map[string]*encrypt.Column{
			"user_id": {
				Logic:           "user_id",
				CipherColumn:    "user_id_cipher",
				Encryptor:       enc,
				QueryWithCipher: true,
			},
			"phone": {
				Logic:               "phone",
				CipherColumn:        "phone_cipher",
				AssistedQueryColumn: "phone_assisted",
				PlainColumn:         "phone_plain",
				Encryptor:           enc,
				AssistedEncryptor:   assisted,
				QueryWithCipher:     true,
			},
			"email": {
				Logic:        "email",
				CipherColumn: "email_cipher",
				PlainColumn:  "email",
				Encryptor:    enc,
			},
		},
	})
	return encrypt.NewTransformer(rule), enc, assisted
}

func TestEncryptForWriteNullPassesThrough(t *testing.T) {
	assert := assert.New(t)
	tr, enc, _ := mockedRule(t)

	enc.EXPECT().Encrypt(42).Return("c42", nil).Times(1)

	out, err := tr.EncryptForWrite("T_USER", "USER_ID", []any{42, nil})
	assert.NoError(err)
	assert.Equal([]any{"c42", nil}, out)
}

func TestEncryptForWriteErrors(t *testing.T) {
	assert := assert.New(t)
	tr, enc, _ := mockedRule(t)

	_, err := tr.EncryptForWrite("t_user", "name", []any{"x"})
	assert.True(srerror.HasCode(err, srerror.SRCFG_NO_ENCRYPTOR))
	assert.ErrorContains(err, "t_user.name")

	enc.EXPECT().Encrypt("boom").Return(nil, errors.New("hsm down"))
	_, err = tr.EncryptForWrite("t_user", "user_id", []any{"boom"})
	assert.ErrorContains(err, "hsm down")

	_, err = tr.AssistedQueryValue("t_user", "user_id", 1)
	assert.True(srerror.HasCode(err, srerror.SRCFG_NO_ENCRYPTOR))
}

func TestQueryValue(t *testing.T) {
	assert := assert.New(t)
	tr, enc, assisted := mockedRule(t)

	assisted.EXPECT().Encrypt("138").Return("a138", nil)
	col, v, ok, err := tr.QueryValue("t_user", "phone", "138")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal("phone_assisted", col)
	assert.Equal("a138", v)

	enc.EXPECT().Encrypt(7).Return("c7", nil)
	col, v, ok, err = tr.QueryValue("t_user", "user_id", 7)
	assert.NoError(err)
	assert.True(ok)
	assert.Equal("user_id_cipher", col)
	assert.Equal("c7", v)

	_, _, ok, err = tr.QueryValue("t_user", "email", "a@b")
	assert.NoError(err)
	assert.False(ok, "email is queried through its plain column")

	_, _, ok, err = tr.QueryValue("t_order", "order_id", 1)
	assert.NoError(err)
	assert.False(ok)

	assert.True(tr.QueryWithCipher("t_user", "phone"))
	assert.False(tr.QueryWithCipher("t_user", "email"))
}

func TestColumnMapping(t *testing.T) {
	assert := assert.New(t)
	tr, _, _ := mockedRule(t)

	assert.True(tr.IsCipherColumn("t_user", "PHONE_CIPHER"))
	assert.False(tr.IsCipherColumn("t_user", "phone_assisted"))

	for physical, logic := range map[string]string{
		"phone_cipher":   "phone",
		"phone_assisted": "phone",
		"phone_plain":    "phone",
		"user_id_cipher": "user_id",
	} {
		got, ok := tr.LogicalColumnFor("t_user", physical)
		assert.True(ok, physical)
		assert.Equal(logic, got)
	}
	_, ok := tr.LogicalColumnFor("t_user", "nickname")
	assert.False(ok)
}

func TestRuleFromConfig(t *testing.T) {
	assert := assert.New(t)
	f := false

	cfg := &config.EncryptCfg{
		Encryptors: map[string]*config.AlgorithmCfg{
			"aes": {Type: "AES", Props: map[string]string{"aes-key-value": "k"}},
			"md5": {Type: "MD5"},
		},
		Tables: map[string]*config.EncryptTableCfg{
			"t_user": {
				QueryWithCipherColumn: &f,
				Columns: map[string]*config.EncryptColumnCfg{
					"phone": {
						CipherColumn:           "phone_cipher",
						AssistedQueryColumn:    "phone_assisted",
						Encryptor:              "aes",
						AssistedQueryEncryptor: "md5",
					},
				},
			},
		},
	}
	rule, err := encrypt.RuleFromConfig(cfg)
	require.NoError(t, err)

	c, ok := rule.Column("t_user", "phone")
	require.True(t, ok)
	assert.False(c.QueryWithCipher)
	assert.Equal("AES", c.Encryptor.Type())
	assert.Equal("MD5", c.AssistedEncryptor.Type())

	tr := encrypt.NewTransformer(rule)
	out, err := tr.EncryptForWrite("t_user", "phone", []any{"138"})
	require.NoError(t, err)
	back, err := tr.Decrypt("t_user", "phone", out)
	require.NoError(t, err)
	assert.Equal([]any{"138"}, back)

	cfg.Tables["t_user"].Columns["phone"].AssistedQueryEncryptor = "sha"
	_, err = encrypt.RuleFromConfig(cfg)
	assert.True(srerror.HasCode(err, srerror.SRCFG_NO_ENCRYPTOR))

	cfg.Tables["t_user"].Columns["phone"].Encryptor = "rsa"
	_, err = encrypt.RuleFromConfig(cfg)
	assert.True(srerror.HasCode(err, srerror.SRCFG_NO_ENCRYPTOR))
}
