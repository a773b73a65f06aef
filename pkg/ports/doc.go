// Package ports defines the boundary interfaces of the engine: session
// persistence, per-call leasing, budget accounting, idempotency, tenant
// configuration, model access and audit emission. Adapters implement these;
// the core depends only on the interfaces.
package ports
