// Package reqid carries a connection-scoped correlation id through
// context, so log lines from the server and the store can be tied to
// one TLS session.
package reqid

import (
	"context"

	"github.com/rs/xid"
)

type key struct{}

// New generates a fresh correlation id.
func New() string {
	return xid.New().String()
}

// NewContext returns ctx with the given id attached.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, key{}, id)
}

// FromContext extracts the id attached by NewContext.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}
