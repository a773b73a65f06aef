// Package middleware provides composable wrappers for session stores:
// encryption at rest and PII masking. Call sessions carry caller phone
// numbers and addresses, so persisted copies often need more protection than
// the in-memory working set.
package middleware

import "github.com/aretw0/switchboard/pkg/ports"

// Middleware wraps a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// Chain applies middlewares so the first listed is outermost.
func Chain(store ports.SessionStore, mws ...Middleware) ports.SessionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
