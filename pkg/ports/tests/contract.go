package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
)

// SessionStoreContractTest is a reusable suite verifying an adapter complies
// with ports.SessionStore.
func SessionStoreContractTest(t *testing.T, store ports.SessionStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := store.Load(ctx, "no-such-call")
		if !errors.Is(err, domain.ErrSessionNotFound) {
			t.Fatalf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Save_Load_RoundTrip", func(t *testing.T) {
		sess := domain.NewCallSession("call-1", "tenant-a")
		sess.Lane = domain.LaneBooking
		sess.BookingLocked = true
		sess.TurnIndex = 3
		sess.SetSlot("name", domain.SlotValue{Value: "Ada", Turn: 2, Source: domain.SourceStated})

		if err := store.Save(ctx, "call-1", sess); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := store.Load(ctx, "call-1")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.Lane != domain.LaneBooking || !got.BookingLocked || got.TurnIndex != 3 {
			t.Errorf("state mismatch: %+v", got)
		}
		if v, ok := got.Slot("name"); !ok || v.Value != "Ada" {
			t.Errorf("slot mismatch: %+v ok=%v", v, ok)
		}
	})

	t.Run("Save_Overwrites", func(t *testing.T) {
		sess := domain.NewCallSession("call-2", "tenant-a")
		if err := store.Save(ctx, "call-2", sess); err != nil {
			t.Fatalf("save: %v", err)
		}
		sess.TurnIndex = 5
		if err := store.Save(ctx, "call-2", sess); err != nil {
			t.Fatalf("resave: %v", err)
		}
		got, err := store.Load(ctx, "call-2")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.TurnIndex != 5 {
			t.Errorf("expected overwritten turn index 5, got %d", got.TurnIndex)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		sess := domain.NewCallSession("call-3", "tenant-a")
		if err := store.Save(ctx, "call-3", sess); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := store.Delete(ctx, "call-3"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		_, err := store.Load(ctx, "call-3")
		if !errors.Is(err, domain.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
		}
	})
}

// BudgetLedgerContractTest verifies an adapter complies with
// ports.BudgetLedger.
func BudgetLedgerContractTest(t *testing.T, ledger ports.BudgetLedger) {
	t.Helper()
	ctx := context.Background()

	t.Run("Spent_ZeroInitially", func(t *testing.T) {
		total, err := ledger.Spent(ctx, "fresh-tenant")
		if err != nil {
			t.Fatalf("spent: %v", err)
		}
		if total != 0 {
			t.Errorf("expected 0, got %d", total)
		}
	})

	t.Run("Charge_Accumulates", func(t *testing.T) {
		if _, err := ledger.Charge(ctx, "tenant-b", 3); err != nil {
			t.Fatalf("charge: %v", err)
		}
		total, err := ledger.Charge(ctx, "tenant-b", 2)
		if err != nil {
			t.Fatalf("charge: %v", err)
		}
		if total != 5 {
			t.Errorf("expected 5, got %d", total)
		}
		spent, err := ledger.Spent(ctx, "tenant-b")
		if err != nil {
			t.Fatalf("spent: %v", err)
		}
		if spent != 5 {
			t.Errorf("expected 5, got %d", spent)
		}
	})

	t.Run("Tenants_Isolated", func(t *testing.T) {
		if _, err := ledger.Charge(ctx, "tenant-c", 7); err != nil {
			t.Fatalf("charge: %v", err)
		}
		spent, err := ledger.Spent(ctx, "tenant-d")
		if err != nil {
			t.Fatalf("spent: %v", err)
		}
		if spent != 0 {
			t.Errorf("expected isolated tenant at 0, got %d", spent)
		}
	})
}

// IdempotencyStoreContractTest verifies an adapter complies with
// ports.IdempotencyStore.
func IdempotencyStoreContractTest(t *testing.T, store ports.IdempotencyStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("Get_Miss", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "call-x:1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if ok {
			t.Error("expected miss for unknown key")
		}
	})

	t.Run("Put_Get_RoundTrip", func(t *testing.T) {
		resp := &domain.TurnResponse{
			SpokenText: "hello",
			Lane:       domain.LaneDiscovery,
			Signals:    []domain.Signal{domain.SignalScheduleAccepted},
		}
		if err := store.Put(ctx, "call-y:2", resp, time.Minute); err != nil {
			t.Fatalf("put: %v", err)
		}
		got, ok, err := store.Get(ctx, "call-y:2")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !ok {
			t.Fatal("expected hit")
		}
		if got.SpokenText != "hello" || got.Lane != domain.LaneDiscovery {
			t.Errorf("mismatch: %+v", got)
		}
		if !domain.HasSignal(got.Signals, domain.SignalScheduleAccepted) {
			t.Error("signals not preserved")
		}
	})
}
