package tsa

import (
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
)

// TSA is stands for target_session_attrs,
// the client-requested kind of target for statements of a session.
type TSA string

const (
	// ReadWrite pins every statement of the session to the write data source.
	ReadWrite = TSA("read-write")
	// ReadOnly and Any leave the choice to statement-based splitting.
	ReadOnly = TSA("read-only")
	Any      = TSA("any")
	// PreferReplica is the default.
	PreferReplica = TSA("prefer-replica")
)

func Parse(s string) (TSA, error) {
	switch t := TSA(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return PreferReplica, nil
	case ReadWrite, ReadOnly, Any, PreferReplica:
		return t, nil
	}
	return "", srerror.Newf(srerror.SRCFG_INVALID_RULE, "unknown target session attrs %q", s)
}

// ForcesWrite reports whether every statement must go to the write target.
func (t TSA) ForcesWrite() bool {
	return t == ReadWrite
}
