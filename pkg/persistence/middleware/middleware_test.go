package middleware

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/switchboard/pkg/adapters/memory"
	"github.com/aretw0/switchboard/pkg/domain"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func sampleSession() *domain.CallSession {
	sess := domain.NewCallSession("call-1", "acme")
	sess.Lane = domain.LaneBooking
	sess.BookingLocked = true
	sess.FlowID = "service-call"
	sess.StepIndex = 2
	sess.Slots["name"] = domain.SlotValue{Value: "Maria Lopez", Turn: 3, Confirmed: true}
	sess.Slots["phone"] = domain.SlotValue{Value: "555-867-5309", Turn: 1}
	return sess
}

func TestEncryptionRoundTrip(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewStore()
	store := Chain(backing, NewEncryptionMiddleware(EncryptionConfig{ActiveKey: testKey(1)}))

	sess := sampleSession()
	require.NoError(t, store.Save(ctx, "call-1", sess))

	loaded, err := store.Load(ctx, "call-1")
	require.NoError(t, err)
	require.Equal(t, "Maria Lopez", loaded.Slots["name"].Value)
	require.Equal(t, "service-call", loaded.FlowID)
	require.Equal(t, 2, loaded.StepIndex)
	require.True(t, loaded.BookingLocked)

	// The backing store must never see plaintext slots.
	raw, err := backing.Load(ctx, "call-1")
	require.NoError(t, err)
	require.NotContains(t, raw.Slots, "name")
	require.Contains(t, raw.Slots, envelopeSlot)
	require.Equal(t, domain.LaneBooking, raw.Lane)
}

func TestEncryptionKeyRotation(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewStore()

	oldStore := Chain(backing, NewEncryptionMiddleware(EncryptionConfig{ActiveKey: testKey(1)}))
	require.NoError(t, oldStore.Save(ctx, "call-1", sampleSession()))

	rotated := Chain(backing, NewEncryptionMiddleware(EncryptionConfig{
		ActiveKey:    testKey(2),
		FallbackKeys: [][]byte{testKey(1)},
	}))
	loaded, err := rotated.Load(ctx, "call-1")
	require.NoError(t, err)
	require.Equal(t, "Maria Lopez", loaded.Slots["name"].Value)

	// Without the fallback the old record is unreadable.
	fresh := Chain(backing, NewEncryptionMiddleware(EncryptionConfig{ActiveKey: testKey(2)}))
	_, err = fresh.Load(ctx, "call-1")
	require.Error(t, err)
}

func TestEncryptionFailsSecureOnPlaintextRecord(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewStore()
	require.NoError(t, backing.Save(ctx, "call-1", sampleSession()))

	store := Chain(backing, NewEncryptionMiddleware(EncryptionConfig{ActiveKey: testKey(1)}))
	_, err := store.Load(ctx, "call-1")
	require.Error(t, err)
}

func TestEncryptionRejectsShortKey(t *testing.T) {
	require.Panics(t, func() {
		NewEncryptionMiddleware(EncryptionConfig{ActiveKey: []byte("short")})
	})
}

func TestPIIMasksMatchingSlots(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewStore()

	mw, err := NewPIIMiddleware([]string{"phone", "^address$"})
	require.NoError(t, err)
	store := Chain(backing, mw)

	sess := sampleSession()
	require.NoError(t, store.Save(ctx, "call-1", sess))

	// Original session untouched.
	require.Equal(t, "555-867-5309", sess.Slots["phone"].Value)

	stored, err := backing.Load(ctx, "call-1")
	require.NoError(t, err)
	require.Equal(t, maskedValue, stored.Slots["phone"].Value)
	require.Equal(t, "Maria Lopez", stored.Slots["name"].Value)
	require.Equal(t, 1, stored.Slots["phone"].Turn)
}

func TestPIIRejectsBadPattern(t *testing.T) {
	_, err := NewPIIMiddleware([]string{"(unclosed"})
	require.Error(t, err)
}

func TestChainOrder(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewStore()

	mask, err := NewPIIMiddleware([]string{"phone"})
	require.NoError(t, err)
	store := Chain(backing,
		mask,
		NewEncryptionMiddleware(EncryptionConfig{ActiveKey: testKey(1)}),
	)

	require.NoError(t, store.Save(ctx, "call-1", sampleSession()))

	loaded, err := store.Load(ctx, "call-1")
	require.NoError(t, err)
	// Masking runs before encryption, so the decrypted copy is masked too.
	require.Equal(t, maskedValue, loaded.Slots["phone"].Value)
	require.Equal(t, "Maria Lopez", loaded.Slots["name"].Value)
}
