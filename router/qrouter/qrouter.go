package qrouter

import (
	"context"

	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
	"github.com/apache/shardingsphere-sub091/pkg/rulemgr"
	"github.com/apache/shardingsphere-sub091/pkg/session"
	"github.com/apache/shardingsphere-sub091/router/route"
	"github.com/apache/shardingsphere-sub091/router/statement"
)

type QueryRouter interface {
	Route(ctx context.Context, stmt *statement.Statement, tx *session.TransactionConnectionContext) (*route.RouteContext, error)

	Mgr() rulemgr.RulesMgr
}

type ProxyQrouter struct {
	mgr rulemgr.RulesMgr
}

var _ QueryRouter = &ProxyQrouter{}

func NewProxyRouter(mgr rulemgr.RulesMgr) *ProxyQrouter {
	return &ProxyQrouter{mgr: mgr}
}

func NewQrouter(mgr rulemgr.RulesMgr) (QueryRouter, error) {
	if mgr == nil {
		return nil, srerror.New(srerror.SR_UNEXPECTED, "query router needs a rules manager")
	}
	return NewProxyRouter(mgr), nil
}

func (qr *ProxyQrouter) Mgr() rulemgr.RulesMgr {
	return qr.mgr
}

// Route routes stmt against the snapshot current at call time. A reload
// during routing does not affect the statement.
func (qr *ProxyQrouter) Route(ctx context.Context, stmt *statement.Statement, tx *session.TransactionConnectionContext) (*route.RouteContext, error) {
	snap := qr.mgr.Current()
	if snap == nil {
		return nil, srerror.New(srerror.SR_UNEXPECTED, "no rules loaded")
	}
	return Route(ctx, snap, stmt, tx)
}
