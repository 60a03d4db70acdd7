package txstatus

// TXStatus is the transaction state of one client connection as the router
// sees it.
type TXStatus byte

const (
	TXIDLE TXStatus = iota + 1
	TXACT
	TXERR
)

type TxStatusMgr interface {
	SetTxStatus(status TXStatus)
	TxStatus() TXStatus
}

func (s TXStatus) String() string {
	switch s {
	case TXIDLE:
		return "IDLE"
	case TXERR:
		return "ERROR"
	case TXACT:
		return "ACTIVE"
	}
	return "invalid"
}

// InTransaction reports whether a transaction block is open, including
// one that has already failed and awaits rollback.
func (s TXStatus) InTransaction() bool {
	return s == TXACT || s == TXERR
}
