package glowroot

import (
	"context"

	"github.com/varsh009/glowroot/internal/model"
)

// contextKeyT is a named, unexported string type so the key can never
// collide with a key defined by another package using the same
// underlying string.
type contextKeyT string

var transactionContextKey = contextKeyT("github.com/varsh009/glowroot.Transaction")

// NewContext returns a copy of the parent context carrying tx as the
// current transaction — the Go substitute for the original source's
// thread-local current-transaction slot, since Go exposes no public
// per-goroutine identity API. The weaver-equivalent call site in a Go
// host application is expected to thread this context through exactly
// as it threads any other request-scoped context.Context.
func NewContext(ctx context.Context, tx *model.Transaction) context.Context {
	return context.WithValue(ctx, transactionContextKey, tx)
}

// FromContext returns the transaction bound to ctx, if any.
func FromContext(ctx context.Context) (tx *model.Transaction, ok bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok = ctx.Value(transactionContextKey).(*model.Transaction)
	return tx, ok
}
