package tsa_test

import (
	"testing"

	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
	"github.com/apache/shardingsphere-sub091/pkg/tsa"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert := assert.New(t)

	for in, exp := range map[string]tsa.TSA{
		"":               tsa.PreferReplica,
		"READ-WRITE":     tsa.ReadWrite,
		" read-only ":    tsa.ReadOnly,
		"any":            tsa.Any,
		"prefer-replica": tsa.PreferReplica,
	} {
		v, err := tsa.Parse(in)
		assert.NoError(err)
		assert.Equal(exp, v)
	}

	_, err := tsa.Parse("smart")
	assert.True(srerror.HasCode(err, srerror.SRCFG_INVALID_RULE))
}

func TestForcesWrite(t *testing.T) {
	assert := assert.New(t)

	assert.True(tsa.ReadWrite.ForcesWrite())
	assert.False(tsa.ReadOnly.ForcesWrite())
	assert.False(tsa.PreferReplica.ForcesWrite())
}
