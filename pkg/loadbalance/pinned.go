package loadbalance

import "github.com/apache/shardingsphere-sub091/pkg/session"

type transactionPinned struct {
	inner Selector
}

// NewTransactionPinned wraps inner so that within one transaction every read
// of a group goes to the target chosen first. The choice lives in the
// caller's transaction context, never in selector state.
func NewTransactionPinned(inner Selector) Selector {
	return &transactionPinned{inner: inner}
}

func (p *transactionPinned) Type() string {
	return p.inner.Type()
}

func (p *transactionPinned) Select(group, writeTarget string, readTargets []string, tx *session.TransactionConnectionContext) (string, error) {
	if !tx.InTransaction() {
		return p.inner.Select(group, writeTarget, readTargets, tx)
	}
	if t, ok := tx.PinnedReplica(group); ok {
		return t, nil
	}
	t, err := p.inner.Select(group, writeTarget, readTargets, tx)
	if err != nil {
		return "", err
	}
	tx.PinReplica(group, t)
	return t, nil
}
