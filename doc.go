// Package switchboard is a real-time turn-processing core for conversational
// call handling. Each inbound caller utterance is one turn: the engine loads
// the call's session under an ordering lease, dispatches by lane (discovery,
// booking, transfer, error, terminated), produces exactly one spoken response
// and commits the updated session.
//
// Discovery turns go through a three-tier response router: deterministic
// trigger matching, embedding similarity, then an optional budget-capped
// model fallback. A scheduling-acceptance signal opens the tenant's booking
// flow, a slot walk guarded by a four-layer validation pipeline that keeps
// misclassified values (an address in a time slot) from ever being stored.
//
// Minimal embedding:
//
//	cfg, _ := config.Parse(yamlBytes, "acme")
//	engine := switchboard.New(config.NewStaticSource(cfg))
//	resp, err := engine.ProcessTurn(ctx, &domain.TurnRequest{
//		CallID:     "call-123",
//		TenantID:   "acme",
//		TurnIndex:  1,
//		CallerText: "hi, what are your hours?",
//	})
//
// Production deployments wire the redis adapters for session persistence,
// call leasing, budget accounting and idempotency, and the openai adapter
// for the semantic and assisted tiers. See cmd/switchboard.
package switchboard
