package txstatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert := assert.New(t)
	cases := map[TXStatus]string{
		TXIDLE:      "IDLE",
		TXERR:       "ERROR",
		TXACT:       "ACTIVE",
		TXStatus(0): "invalid",
	}
	for status, expect := range cases {
		assert.Equal(expect, status.String())
	}
}

func TestInTransaction(t *testing.T) {
	assert := assert.New(t)

	assert.False(TXIDLE.InTransaction())
	assert.False(TXStatus(0).InTransaction(), "zero value is not a transaction")
	assert.True(TXACT.InTransaction())
	assert.True(TXERR.InTransaction())
}
