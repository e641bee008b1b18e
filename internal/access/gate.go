// Package access implements the capability check that guards policy creation.
package access

import (
	"context"

	id "execledger/pkg/domain"
	dErrors "execledger/pkg/domain-errors"
)

// ErrMessageUnauthorized is returned to callers outside the allow-list.
const ErrMessageUnauthorized = "policy not verified by the authorized oracle"

// Gate is an allow-list of principals permitted to create policies. It is
// built once at startup and never modified, so it is safe for concurrent use.
type Gate struct {
	allowed map[id.Principal]struct{}
}

// NewGate returns a gate admitting exactly the given principals. Empty
// principals are ignored; a gate built from none admits nobody.
func NewGate(principals ...id.Principal) *Gate {
	g := &Gate{allowed: make(map[id.Principal]struct{}, len(principals))}
	for _, p := range principals {
		p = id.NewPrincipal(string(p))
		if p.IsZero() {
			continue
		}
		g.allowed[p] = struct{}{}
	}
	return g
}

// Authorize returns nil if caller is on the allow-list and a CodeUnauthorized
// error otherwise. It has no side effects.
func (g *Gate) Authorize(_ context.Context, caller id.Principal) error {
	caller = id.NewPrincipal(string(caller))
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, ErrMessageUnauthorized)
	}
	if _, ok := g.allowed[caller]; !ok {
		return dErrors.New(dErrors.CodeUnauthorized, ErrMessageUnauthorized)
	}
	return nil
}

// Principals returns the allow-list in no particular order.
func (g *Gate) Principals() []id.Principal {
	out := make([]id.Principal, 0, len(g.allowed))
	for p := range g.allowed {
		out = append(out, p)
	}
	return out
}
