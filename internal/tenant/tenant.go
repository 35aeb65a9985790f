package tenant

import (
	"context"
	"fmt"
	"strings"
)

// Context carries the resolved tenant identity through every inventory
// operation. It is constructed once per request at the API boundary and
// passed explicitly; no operation derives a shop id from ambient state.
type Context struct {
	ShopID   string
	ShopName string
}

// New validates and returns a tenant context. The shop id is mandatory;
// the name is display-only.
func New(shopID, shopName string) (Context, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return Context{}, fmt.Errorf("shop id required")
	}
	return Context{ShopID: shopID, ShopName: strings.TrimSpace(shopName)}, nil
}

// Valid reports whether the tenant context carries a shop id.
func (t Context) Valid() bool {
	return strings.TrimSpace(t.ShopID) != ""
}

type ctxKey struct{}

// Attach stores the tenant on the request context for boundary middleware.
func Attach(ctx context.Context, t Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext retrieves the tenant placed by the auth middleware.
func FromContext(ctx context.Context) (Context, bool) {
	t, ok := ctx.Value(ctxKey{}).(Context)
	if !ok || !t.Valid() {
		return Context{}, false
	}
	return t, true
}
