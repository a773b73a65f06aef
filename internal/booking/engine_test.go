package booking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/internal/metrics"
	"github.com/aretw0/switchboard/pkg/adapters/memory"
	"github.com/aretw0/switchboard/pkg/domain"
)

func bookingConfig() *domain.TenantConfig {
	return &domain.TenantConfig{
		TenantID:   "acme",
		Version:    "1",
		Flows:      []domain.BookingFlowDefinition{*testFlow()},
		Validation: testValidation(),
		Replies: domain.Replies{
			Default:  "Sorry, I didn't catch that.",
			Transfer: "Let me connect you with a colleague.",
		},
		RewindCap: 3,
	}
}

func newTestEngine(t *testing.T) (*Engine, *memory.Sink) {
	t.Helper()
	sink := memory.NewSink()
	return NewEngine(logging.NewNop(), sink, metrics.NewNop()), sink
}

// turn runs one utterance through the engine and bumps the turn index the way
// the lane machine does after a commit.
func turn(t *testing.T, e *Engine, cfg *domain.TenantConfig, flow *domain.BookingFlowDefinition, sess *domain.CallSession, utterance string) Result {
	t.Helper()
	res, err := e.HandleTurn(context.Background(), cfg, flow, sess, utterance, nil)
	require.NoError(t, err)
	sess.TurnIndex++
	return res
}

func TestFlowHappyPath(t *testing.T) {
	e, sink := newTestEngine(t)
	cfg := bookingConfig()
	flow := &cfg.Flows[0]
	sess := domain.NewCallSession("call-1", "acme")
	sess.FlowID = flow.ID

	res := turn(t, e, cfg, flow, sess, "Dana Whitfield")
	require.True(t, res.WroteSlot)
	require.Equal(t, "What's the best number to reach you?", res.Spoken)

	res = turn(t, e, cfg, flow, sess, "555-123-4567")
	require.Equal(t, "What's the service address?", res.Spoken)

	res = turn(t, e, cfg, flow, sess, "123 Elm Street")
	require.Equal(t, "When works best for you?", res.Spoken)

	res = turn(t, e, cfg, flow, sess, "tomorrow morning")
	require.True(t, sess.PendingConfirmation)
	require.Equal(t,
		"So that's Dana Whitfield at 123 Elm Street, tomorrow morning, and we'll call 555-123-4567. Shall I book it?",
		res.Spoken)
	require.Len(t, sink.ByType(domain.EventConfirmationOffered), 1)

	res = turn(t, e, cfg, flow, sess, "yes please")
	require.True(t, res.Completed)
	require.False(t, sess.PendingConfirmation)
	require.Equal(t, "You're all set for tomorrow morning. See you then!", res.Spoken)
	require.Len(t, sink.ByType(domain.EventBookingCompleted), 1)
}

func TestWriteRejectionKeepsSlotUnset(t *testing.T) {
	e, sink := newTestEngine(t)
	cfg := bookingConfig()
	flow := &cfg.Flows[0]
	sess := domain.NewCallSession("call-1", "acme")
	sess.FlowID = flow.ID
	sess.StepIndex = 3
	sess.SetSlot("name", domain.SlotValue{Value: "Dana", Source: domain.SourceStated, Confirmed: true})
	sess.SetSlot("phone", domain.SlotValue{Value: "555-123-4567", Source: domain.SourceStated, Confirmed: true})
	sess.SetSlot("address", domain.SlotValue{Value: "123 Elm Street", Source: domain.SourceStated, Confirmed: true})

	// An address-shaped answer to the time question never lands in the slot.
	res := turn(t, e, cfg, flow, sess, "456 Oak Avenue")
	require.False(t, res.WroteSlot)
	require.Equal(t, "Sorry, what day or time works for you?", res.Spoken)

	_, stored := sess.Slot("time")
	require.False(t, stored)

	events := sink.ByType(domain.EventValidationRejected)
	require.Len(t, events, 1)
	require.Equal(t, string(domain.RejectStreetSuffix), events[0].Fields["reason"])
}

func TestUrgencyPhraseAcceptedAsTemporal(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := bookingConfig()
	flow := &cfg.Flows[0]
	sess := domain.NewCallSession("call-1", "acme")
	sess.FlowID = flow.ID
	sess.StepIndex = 3
	sess.SetSlot("name", domain.SlotValue{Value: "Dana", Source: domain.SourceStated, Confirmed: true})
	sess.SetSlot("phone", domain.SlotValue{Value: "555-123-4567", Source: domain.SourceStated, Confirmed: true})
	sess.SetSlot("address", domain.SlotValue{Value: "123 Elm Street", Source: domain.SourceStated, Confirmed: true})

	res := turn(t, e, cfg, flow, sess, "as early as possible")
	require.True(t, res.WroteSlot)

	stored, ok := sess.Slot("time")
	require.True(t, ok)
	require.Equal(t, "as early as possible", stored.Value)
	require.True(t, sess.PendingConfirmation)
}

func TestStepGateDropsSpeculativeWrites(t *testing.T) {
	e, sink := newTestEngine(t)
	cfg := bookingConfig()
	flow := &cfg.Flows[0]
	sess := domain.NewCallSession("call-1", "acme")
	sess.FlowID = flow.ID
	// Active step is name; the extractor also proposed a time value.
	speculative := map[string]string{
		"name": "Dana Whitfield",
		"time": "tomorrow morning",
	}

	res, err := e.HandleTurn(context.Background(), cfg, flow, sess, "Dana Whitfield, tomorrow morning works", speculative)
	require.NoError(t, err)
	require.True(t, res.WroteSlot)

	stored, ok := sess.Slot("name")
	require.True(t, ok)
	require.Equal(t, "Dana Whitfield", stored.Value)

	_, ok = sess.Slot("time")
	require.False(t, ok)

	events := sink.ByType(domain.EventStepGateDrop)
	require.Len(t, events, 1)
	require.Equal(t, "time", events[0].Fields["slot"])
}

func TestSummaryRefusalClearsLatestSlot(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := bookingConfig()
	flow := &cfg.Flows[0]
	sess := domain.NewCallSession("call-1", "acme")
	sess.FlowID = flow.ID

	turn(t, e, cfg, flow, sess, "Dana Whitfield")
	turn(t, e, cfg, flow, sess, "555-123-4567")
	turn(t, e, cfg, flow, sess, "123 Elm Street")
	turn(t, e, cfg, flow, sess, "tomorrow morning")
	require.True(t, sess.PendingConfirmation)

	res := turn(t, e, cfg, flow, sess, "no, that's wrong")
	require.False(t, sess.PendingConfirmation)
	require.Equal(t, 1, sess.RewindCount)

	// The most recent write (time) was cleared and is re-collected.
	_, ok := sess.Slot("time")
	require.False(t, ok)
	require.Equal(t, "When works best for you?", res.Spoken)
}

func TestRewindCapEscalates(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := bookingConfig()
	cfg.RewindCap = 1
	flow := &cfg.Flows[0]
	sess := domain.NewCallSession("call-1", "acme")
	sess.FlowID = flow.ID

	turn(t, e, cfg, flow, sess, "Dana Whitfield")
	turn(t, e, cfg, flow, sess, "555-123-4567")
	turn(t, e, cfg, flow, sess, "123 Elm Street")
	turn(t, e, cfg, flow, sess, "tomorrow morning")

	res := turn(t, e, cfg, flow, sess, "no")
	require.False(t, res.Escalate)

	turn(t, e, cfg, flow, sess, "friday afternoon")
	require.True(t, sess.PendingConfirmation)

	res = turn(t, e, cfg, flow, sess, "no")
	require.True(t, res.Escalate)
	require.Equal(t, cfg.Replies.Transfer, res.Spoken)
}

func TestConfirmationInvariantRecheckedOnYes(t *testing.T) {
	e, sink := newTestEngine(t)
	cfg := bookingConfig()
	flow := &cfg.Flows[0]
	sess := domain.NewCallSession("call-1", "acme")
	sess.FlowID = flow.ID
	sess.PendingConfirmation = true
	sess.SetSlot("name", domain.SlotValue{Value: "Dana", Source: domain.SourceStated, Confirmed: true})
	sess.SetSlot("phone", domain.SlotValue{Value: "555-123-4567", Source: domain.SourceStated, Confirmed: true})
	sess.SetSlot("address", domain.SlotValue{Value: "42 Maple Grove", Source: domain.SourceStated, Confirmed: true})
	// Corrupted: the time slot holds the address.
	sess.SetSlot("time", domain.SlotValue{Value: "42 Maple Grove", Source: domain.SourceStated, Confirmed: true})

	res := turn(t, e, cfg, flow, sess, "yes")
	require.False(t, res.Completed)
	require.False(t, sess.PendingConfirmation)

	_, ok := sess.Slot("time")
	require.False(t, ok)
	require.Equal(t, 3, sess.StepIndex)
	require.Equal(t, "When works best for you?", res.Spoken)
	require.Len(t, sink.ByType(domain.EventConfirmationRewind), 1)
	require.Empty(t, sink.ByType(domain.EventBookingCompleted))
}

func TestAmbiguousSummaryAnswerRepresents(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := bookingConfig()
	flow := &cfg.Flows[0]
	sess := domain.NewCallSession("call-1", "acme")
	sess.FlowID = flow.ID

	turn(t, e, cfg, flow, sess, "Dana Whitfield")
	turn(t, e, cfg, flow, sess, "555-123-4567")
	turn(t, e, cfg, flow, sess, "123 Elm Street")
	summary := turn(t, e, cfg, flow, sess, "tomorrow morning")

	res := turn(t, e, cfg, flow, sess, "hmm let me think")
	require.True(t, sess.PendingConfirmation)
	require.Equal(t, summary.Spoken, res.Spoken)
}

func TestBeginPrefillsPhoneFromCallerID(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := bookingConfig()
	flow := &cfg.Flows[0]
	sess := domain.NewCallSession("call-1", "acme")

	res, err := e.Begin(context.Background(), cfg, flow, sess, domain.ChannelInfo{
		Channel:  "voice",
		CallerID: "+1 555 123 4567",
	})
	require.NoError(t, err)
	require.Equal(t, flow.ID, sess.FlowID)

	// The valid prefill counts as this turn's slot write.
	require.True(t, res.WroteSlot)

	stored, ok := sess.Slot("phone")
	require.True(t, ok)
	require.Equal(t, domain.SourceInferred, stored.Source)
	require.False(t, stored.Confirmed)

	// Collection still starts at the first unfilled slot.
	require.Equal(t, "Who am I speaking with?", res.Spoken)
}

func TestBeginDropsInvalidCallerID(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := bookingConfig()
	flow := &cfg.Flows[0]
	sess := domain.NewCallSession("call-1", "acme")

	res, err := e.Begin(context.Background(), cfg, flow, sess, domain.ChannelInfo{
		Channel:  "voice",
		CallerID: "anonymous",
	})
	require.NoError(t, err)
	require.False(t, res.WroteSlot)

	_, ok := sess.Slot("phone")
	require.False(t, ok)
}

func TestInferredValueConfirmedBeforeUse(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := bookingConfig()
	flow := &cfg.Flows[0]
	sess := domain.NewCallSession("call-1", "acme")

	_, err := e.Begin(context.Background(), cfg, flow, sess, domain.ChannelInfo{CallerID: "555-123-4567"})
	require.NoError(t, err)
	sess.TurnIndex++

	// Name collected; the inferred phone now needs a read-back.
	res := turn(t, e, cfg, flow, sess, "Dana Whitfield")
	require.Equal(t, "phone", sess.ConfirmingSlot)
	require.Contains(t, res.Spoken, "555-123-4567")

	// Caller confirms; collection proceeds to the address.
	res = turn(t, e, cfg, flow, sess, "yes")
	require.Empty(t, sess.ConfirmingSlot)
	stored, _ := sess.Slot("phone")
	require.True(t, stored.Confirmed)
	require.Equal(t, "What's the service address?", res.Spoken)
}

func TestInferredValueRejectedReasksSlot(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := bookingConfig()
	flow := &cfg.Flows[0]
	sess := domain.NewCallSession("call-1", "acme")

	_, err := e.Begin(context.Background(), cfg, flow, sess, domain.ChannelInfo{CallerID: "555-123-4567"})
	require.NoError(t, err)
	sess.TurnIndex++

	turn(t, e, cfg, flow, sess, "Dana Whitfield")
	require.Equal(t, "phone", sess.ConfirmingSlot)

	res := turn(t, e, cfg, flow, sess, "no, that's my old number")
	require.Empty(t, sess.ConfirmingSlot)
	_, ok := sess.Slot("phone")
	require.False(t, ok)
	require.Equal(t, "What's the best number to reach you?", res.Spoken)
}

func TestSlotConfirmAcceptsCorrectedValue(t *testing.T) {
	e, _ := newTestEngine(t)
	cfg := bookingConfig()
	flow := &cfg.Flows[0]
	sess := domain.NewCallSession("call-1", "acme")

	_, err := e.Begin(context.Background(), cfg, flow, sess, domain.ChannelInfo{CallerID: "555-123-4567"})
	require.NoError(t, err)
	sess.TurnIndex++

	turn(t, e, cfg, flow, sess, "Dana Whitfield")
	require.Equal(t, "phone", sess.ConfirmingSlot)

	// The reply is neither yes nor no; treat it as the corrected number.
	res := turn(t, e, cfg, flow, sess, "555-987-6543")
	require.True(t, res.WroteSlot)
	stored, _ := sess.Slot("phone")
	require.Equal(t, "555-987-6543", stored.Value)
	require.True(t, stored.Confirmed)
	require.Equal(t, "What's the service address?", res.Spoken)
}

func TestSweepClearsCrossContaminatedSlot(t *testing.T) {
	e, sink := newTestEngine(t)
	cfg := bookingConfig()
	flow := &cfg.Flows[0]
	sess := domain.NewCallSession("call-1", "acme")
	sess.FlowID = flow.ID
	sess.StepIndex = 2
	sess.SetSlot("name", domain.SlotValue{Value: "Dana", Source: domain.SourceStated, Confirmed: true})
	sess.SetSlot("phone", domain.SlotValue{Value: "555-123-4567", Source: domain.SourceStated, Confirmed: true})
	// The time slot was somehow filled with what is about to become the
	// address. Once the address is stored the sweep catches the overlap.
	sess.SetSlot("time", domain.SlotValue{Value: "42 Maple Grove", Source: domain.SourceStated, Confirmed: true})

	res := turn(t, e, cfg, flow, sess, "42 Maple Grove")
	require.True(t, res.WroteSlot)

	_, ok := sess.Slot("time")
	require.False(t, ok)
	require.Len(t, sink.ByType(domain.EventSanityFixApplied), 1)

	// Collection resumes at the cleared slot.
	require.Equal(t, "When works best for you?", res.Spoken)
}

func TestClassifyYesNo(t *testing.T) {
	require.Equal(t, answerYes, classifyYesNo("yes please"))
	require.Equal(t, answerYes, classifyYesNo("Yeah, that's right"))
	require.Equal(t, answerNo, classifyYesNo("no"))
	require.Equal(t, answerNo, classifyYesNo("nope, wrong number"))
	require.Equal(t, answerUnknown, classifyYesNo("well yes and no"))
	require.Equal(t, answerUnknown, classifyYesNo("maybe tuesday"))
	require.Equal(t, answerUnknown, classifyYesNo(""))
}
