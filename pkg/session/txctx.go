package session

import (
	"sync"

	"github.com/apache/shardingsphere-sub091/pkg/tsa"
	"github.com/apache/shardingsphere-sub091/pkg/txstatus"
	"github.com/google/uuid"
)

// TransactionConnectionContext is the per-connection state the router
// consults. It replaces implicit thread-local state: callers create one per
// client connection and pass it explicitly with every statement.
type TransactionConnectionContext struct {
	id uuid.UUID

	mu            sync.Mutex
	status        txstatus.TXStatus
	attrs         tsa.TSA
	writeRouted   bool
	pinnedReplica map[string]string
}

var _ txstatus.TxStatusMgr = &TransactionConnectionContext{}

func NewTransactionConnectionContext() *TransactionConnectionContext {
	return &TransactionConnectionContext{
		id:            uuid.New(),
		status:        txstatus.TXIDLE,
		attrs:         tsa.PreferReplica,
		pinnedReplica: map[string]string{},
	}
}

func (c *TransactionConnectionContext) ID() uuid.UUID {
	return c.id
}

func (c *TransactionConnectionContext) SetTxStatus(status txstatus.TXStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

func (c *TransactionConnectionContext) TxStatus() txstatus.TXStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// InTransaction is nil-safe: a nil context is never in a transaction.
func (c *TransactionConnectionContext) InTransaction() bool {
	if c == nil {
		return false
	}
	return c.TxStatus().InTransaction()
}

// Begin opens a transaction block and clears the per-transaction state.
func (c *TransactionConnectionContext) Begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = txstatus.TXACT
	c.resetLocked()
}

func (c *TransactionConnectionContext) Commit() {
	c.finish()
}

func (c *TransactionConnectionContext) Rollback() {
	c.finish()
}

func (c *TransactionConnectionContext) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = txstatus.TXIDLE
	c.resetLocked()
}

func (c *TransactionConnectionContext) resetLocked() {
	c.writeRouted = false
	c.pinnedReplica = map[string]string{}
}

// MarkWriteRouted records that the open transaction has sent a statement to
// a write target. Outside a transaction it is a no-op.
func (c *TransactionConnectionContext) MarkWriteRouted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.InTransaction() {
		c.writeRouted = true
	}
}

func (c *TransactionConnectionContext) WriteRouted() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeRouted
}

// PinnedReplica returns the read target chosen earlier in this transaction
// for the given read/write-split group.
func (c *TransactionConnectionContext) PinnedReplica(group string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.pinnedReplica[group]
	return t, ok
}

func (c *TransactionConnectionContext) PinReplica(group, target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinnedReplica[group] = target
}

func (c *TransactionConnectionContext) TargetSessionAttrs() tsa.TSA {
	if c == nil {
		return tsa.PreferReplica
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attrs
}

func (c *TransactionConnectionContext) SetTargetSessionAttrs(t tsa.TSA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attrs = t
}
