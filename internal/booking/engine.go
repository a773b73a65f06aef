package booking

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aretw0/switchboard/internal/metrics"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
)

// Result is the engine's proposed outcome for one turn. The lane state
// machine commits the mutated session; the engine itself never persists.
type Result struct {
	Spoken string

	// WroteSlot is true when a slot write was accepted this turn. The lane
	// machine requires it to lock the booking lane.
	WroteSlot bool

	// Completed is true once the caller confirmed the summary.
	Completed bool

	// Escalate is set when rewinds exceeded the tenant cap.
	Escalate bool
}

// Engine walks a booking flow's slots in order, applying the validation
// pipeline at write time, before advancing and before confirmation.
type Engine struct {
	logger *slog.Logger
	sink   ports.EventSink
	mx     *metrics.Metrics
}

// NewEngine creates a booking engine.
func NewEngine(logger *slog.Logger, sink ports.EventSink, mx *metrics.Metrics) *Engine {
	return &Engine{logger: logger, sink: sink, mx: mx}
}

// HandleTurn processes one caller utterance inside the booking lane. The
// session is mutated in place (callers pass a clone). speculative carries
// extractor proposals for slots other than the active one; the step gate
// drops them.
func (e *Engine) HandleTurn(
	ctx context.Context,
	cfg *domain.TenantConfig,
	flow *domain.BookingFlowDefinition,
	sess *domain.CallSession,
	utterance string,
	speculative map[string]string,
) (Result, error) {
	pipe := NewPipeline(cfg.Validation)

	if sess.PendingConfirmation {
		return e.handleSummaryAnswer(ctx, cfg, flow, sess, pipe, utterance)
	}
	if sess.ConfirmingSlot != "" {
		return e.handleSlotConfirmAnswer(ctx, cfg, flow, sess, pipe, utterance)
	}

	return e.collect(ctx, cfg, flow, sess, pipe, utterance, speculative)
}

// Begin opens a flow after the caller accepted scheduling: it records the
// flow on the session, seeds phone-class slots from the caller ID and speaks
// the first prompt. The booking lane is not locked yet; the lane machine
// locks it on the first accepted write (which a valid prefill counts as).
func (e *Engine) Begin(
	ctx context.Context,
	cfg *domain.TenantConfig,
	flow *domain.BookingFlowDefinition,
	sess *domain.CallSession,
	channel domain.ChannelInfo,
) (Result, error) {
	sess.FlowID = flow.ID
	sess.StepIndex = 0

	if channel.CallerID != "" {
		for _, slot := range flow.Slots {
			if slot.Type == domain.TypePhone {
				e.Prefill(ctx, cfg, flow, sess, slot.Name, channel.CallerID)
				break
			}
		}
	}

	pipe := NewPipeline(cfg.Validation)
	result := Result{}
	for _, slot := range flow.Slots {
		if _, ok := sess.Slot(slot.Name); ok {
			result.WroteSlot = true
			break
		}
	}
	return e.advance(ctx, cfg, flow, sess, pipe, result)
}

// Prefill seeds a slot from inferred metadata (e.g. caller ID) before the
// first collection step. Inferred values are stored unconfirmed so the
// confirmation policy can re-ask them. Invalid values are dropped silently:
// nothing the caller said is being rejected.
func (e *Engine) Prefill(ctx context.Context, cfg *domain.TenantConfig, flow *domain.BookingFlowDefinition, sess *domain.CallSession, slotName, value string) {
	slot, ok := flow.Find(slotName)
	if !ok {
		return
	}
	if _, exists := sess.Slot(slotName); exists {
		return
	}
	pipe := NewPipeline(cfg.Validation)
	if out := pipe.Validate(flow, slot, value, sess); !out.OK() {
		return
	}
	sess.SetSlot(slotName, domain.SlotValue{
		Value:  strings.TrimSpace(value),
		Turn:   sess.TurnIndex,
		Source: domain.SourceInferred,
	})
}

// collect runs the write path: step gate, write-time validation, pre-advance
// sweep, then the next prompt or the confirmation summary.
func (e *Engine) collect(
	ctx context.Context,
	cfg *domain.TenantConfig,
	flow *domain.BookingFlowDefinition,
	sess *domain.CallSession,
	pipe *Pipeline,
	utterance string,
	speculative map[string]string,
) (Result, error) {
	active, ok := flow.SlotAt(sess.StepIndex)
	if !ok {
		// Step index drifted past the flow (config shrank between turns).
		sess.StepIndex = 0
		active, _ = flow.SlotAt(0)
	}

	// Layer 4: drop speculative writes for any slot but the active step.
	candidate := strings.TrimSpace(utterance)
	for name, value := range speculative {
		if name == active.Name {
			candidate = strings.TrimSpace(value)
			continue
		}
		e.mx.StepGateDrops.Inc()
		e.emit(ctx, sess, domain.EventStepGateDrop, map[string]any{
			"slot":        name,
			"active_slot": active.Name,
		})
	}

	result := Result{}

	// Layer 1: write-time type validation. A failing write is never stored.
	out := pipe.Validate(flow, active, candidate, sess)
	if !out.OK() {
		e.mx.ValidationRejected.WithLabelValues(string(out.Reason)).Inc()
		e.emit(ctx, sess, domain.EventValidationRejected, map[string]any{
			"slot":   active.Name,
			"reason": string(out.Reason),
		})
		result.Spoken = retryPrompt(active)
		return result, nil
	}

	sess.SetSlot(active.Name, domain.SlotValue{
		Value:     candidate,
		Turn:      sess.TurnIndex,
		Source:    domain.SourceStated,
		Confirmed: true, // the caller just stated it in this flow
	})
	result.WroteSlot = true

	// Layer 2: pre-advance sanity sweep over everything already stored.
	e.sweep(ctx, flow, sess, pipe)

	return e.advance(ctx, cfg, flow, sess, pipe, result)
}

// sweep clears any stored slot that no longer validates and rewinds the step
// to the earliest cleared slot.
func (e *Engine) sweep(ctx context.Context, flow *domain.BookingFlowDefinition, sess *domain.CallSession, pipe *Pipeline) {
	for _, fix := range pipe.Sweep(flow, sess) {
		sess.ClearSlot(fix.Slot)
		if fix.Step < sess.StepIndex {
			sess.StepIndex = fix.Step
		}
		e.mx.SanityFixes.Inc()
		e.emit(ctx, sess, domain.EventSanityFixApplied, map[string]any{
			"slot":   fix.Slot,
			"reason": string(fix.Reason),
		})
		e.logger.Warn("stored slot failed re-validation, cleared",
			"call_id", sess.ID,
			"slot", fix.Slot,
			"reason", string(fix.Reason),
		)
	}
}

// advance finds the next step: an unfilled slot, an unconfirmed value whose
// policy demands a read-back, or the confirmation summary.
func (e *Engine) advance(
	ctx context.Context,
	cfg *domain.TenantConfig,
	flow *domain.BookingFlowDefinition,
	sess *domain.CallSession,
	pipe *Pipeline,
	result Result,
) (Result, error) {
	for step, slot := range flow.Slots {
		stored, ok := sess.Slot(slot.Name)
		if !ok {
			if !slot.Required {
				continue
			}
			sess.StepIndex = step
			result.Spoken = slot.Prompt
			return result, nil
		}
		if needsConfirmation(slot, stored) {
			sess.StepIndex = step
			sess.ConfirmingSlot = slot.Name
			result.Spoken = confirmPrompt(slot, stored)
			return result, nil
		}
	}

	// Layer 3: pre-confirmation invariant. Confirmation is never presented
	// over a missing or invalid required slot.
	if step, slotName, reason, bad := pipe.MissingRequired(flow, sess); bad {
		return e.rewind(ctx, cfg, flow, sess, result, step, slotName, reason)
	}

	sess.PendingConfirmation = true
	result.Spoken = renderTemplate(flow.ConfirmationTemplate, sess)
	e.emit(ctx, sess, domain.EventConfirmationOffered, map[string]any{
		"flow": flow.ID,
	})
	return result, nil
}

// handleSummaryAnswer interprets the caller's reply to the confirmation
// summary.
func (e *Engine) handleSummaryAnswer(
	ctx context.Context,
	cfg *domain.TenantConfig,
	flow *domain.BookingFlowDefinition,
	sess *domain.CallSession,
	pipe *Pipeline,
	utterance string,
) (Result, error) {
	result := Result{}

	switch classifyYesNo(utterance) {
	case answerYes:
		// Re-check the invariant: the sweep may have run on a different
		// code path since the summary was presented.
		if step, slotName, reason, bad := pipe.MissingRequired(flow, sess); bad {
			sess.PendingConfirmation = false
			return e.rewind(ctx, cfg, flow, sess, result, step, slotName, reason)
		}
		sess.PendingConfirmation = false
		result.Completed = true
		result.Spoken = renderTemplate(flow.CompletionTemplate, sess)
		e.emit(ctx, sess, domain.EventBookingCompleted, map[string]any{
			"flow": flow.ID,
		})
		return result, nil

	case answerNo:
		// The caller objected to the read-back; clear the most recently
		// written slot and re-collect it.
		sess.PendingConfirmation = false
		step, slotName := latestWrittenSlot(flow, sess)
		if slotName != "" {
			sess.ClearSlot(slotName)
			sess.StepIndex = step
		}
		return e.bumpRewind(ctx, cfg, flow, sess, result, slotName, domain.RejectConfirmDeclined)

	default:
		// Ambiguous; re-present the summary after re-checking the invariant.
		if step, slotName, reason, bad := pipe.MissingRequired(flow, sess); bad {
			sess.PendingConfirmation = false
			return e.rewind(ctx, cfg, flow, sess, result, step, slotName, reason)
		}
		result.Spoken = renderTemplate(flow.ConfirmationTemplate, sess)
		return result, nil
	}
}

// handleSlotConfirmAnswer interprets the caller's reply to a single-slot
// read-back (inferred values, or slots with an always-confirm policy).
func (e *Engine) handleSlotConfirmAnswer(
	ctx context.Context,
	cfg *domain.TenantConfig,
	flow *domain.BookingFlowDefinition,
	sess *domain.CallSession,
	pipe *Pipeline,
	utterance string,
) (Result, error) {
	slotName := sess.ConfirmingSlot
	result := Result{}

	slot, ok := flow.Find(slotName)
	if !ok {
		sess.ConfirmingSlot = ""
		return e.advance(ctx, cfg, flow, sess, pipe, result)
	}

	switch classifyYesNo(utterance) {
	case answerYes:
		if stored, ok := sess.Slot(slotName); ok {
			stored.Confirmed = true
			sess.SetSlot(slotName, stored)
		}
		sess.ConfirmingSlot = ""
		return e.advance(ctx, cfg, flow, sess, pipe, result)

	case answerNo:
		sess.ClearSlot(slotName)
		sess.ConfirmingSlot = ""
		sess.StepIndex = flow.IndexOf(slotName)
		result.Spoken = slot.Prompt
		return result, nil

	default:
		// Treat the reply as a corrected value for this slot.
		out := pipe.Validate(flow, slot, utterance, sess)
		if !out.OK() {
			e.mx.ValidationRejected.WithLabelValues(string(out.Reason)).Inc()
			e.emit(ctx, sess, domain.EventValidationRejected, map[string]any{
				"slot":   slotName,
				"reason": string(out.Reason),
			})
			result.Spoken = confirmPrompt(slot, mustSlot(sess, slotName))
			return result, nil
		}
		sess.SetSlot(slotName, domain.SlotValue{
			Value:     strings.TrimSpace(utterance),
			Turn:      sess.TurnIndex,
			Source:    domain.SourceStated,
			Confirmed: true,
		})
		sess.ConfirmingSlot = ""
		result.WroteSlot = true
		e.sweep(ctx, flow, sess, pipe)
		return e.advance(ctx, cfg, flow, sess, pipe, result)
	}
}

// rewind clears the offending slot, moves the step back and counts the
// rewind against the tenant cap.
func (e *Engine) rewind(
	ctx context.Context,
	cfg *domain.TenantConfig,
	flow *domain.BookingFlowDefinition,
	sess *domain.CallSession,
	result Result,
	step int,
	slotName string,
	reason domain.RejectReason,
) (Result, error) {
	sess.ClearSlot(slotName)
	sess.StepIndex = step
	e.mx.ConfirmationRewinds.Inc()
	e.emit(ctx, sess, domain.EventConfirmationRewind, map[string]any{
		"slot":   slotName,
		"reason": string(reason),
	})
	return e.bumpRewind(ctx, cfg, flow, sess, result, slotName, reason)
}

func (e *Engine) bumpRewind(
	ctx context.Context,
	cfg *domain.TenantConfig,
	flow *domain.BookingFlowDefinition,
	sess *domain.CallSession,
	result Result,
	slotName string,
	reason domain.RejectReason,
) (Result, error) {
	sess.RewindCount++
	if sess.RewindCount > cfg.RewindCap {
		result.Escalate = true
		result.Spoken = cfg.Replies.Transfer
		return result, nil
	}
	if slot, ok := flow.SlotAt(sess.StepIndex); ok {
		result.Spoken = slot.Prompt
	} else {
		result.Spoken = cfg.Replies.Default
	}
	return result, nil
}

func (e *Engine) emit(ctx context.Context, sess *domain.CallSession, typ domain.EventType, fields map[string]any) {
	if e.sink == nil {
		return
	}
	e.sink.Emit(ctx, domain.NewEvent(typ, sess.ID, sess.TenantID, sess.TurnIndex, fields))
}

// needsConfirmation applies the slot's confirmation policy. The default
// (empty policy) confirms inferred values and trusts explicitly stated ones.
func needsConfirmation(slot domain.Slot, v domain.SlotValue) bool {
	if v.Confirmed {
		return false
	}
	switch slot.Confirm {
	case domain.ConfirmNever:
		return false
	case domain.ConfirmAlways:
		return true
	case domain.ConfirmIfMissing, "":
		return v.Source == domain.SourceInferred
	default:
		return false
	}
}

func retryPrompt(slot domain.Slot) string {
	if slot.RetryPrompt != "" {
		return slot.RetryPrompt
	}
	return slot.Prompt
}

func confirmPrompt(slot domain.Slot, v domain.SlotValue) string {
	return "I have " + v.Value + " for your " + strings.ReplaceAll(slot.Name, "_", " ") + ". Is that right?"
}

func mustSlot(sess *domain.CallSession, name string) domain.SlotValue {
	v, _ := sess.Slot(name)
	return v
}

// latestWrittenSlot returns the flow step and name of the most recently
// accepted slot value.
func latestWrittenSlot(flow *domain.BookingFlowDefinition, sess *domain.CallSession) (int, string) {
	bestTurn := -1
	bestStep := 0
	bestName := ""
	for step, slot := range flow.Slots {
		if stored, ok := sess.Slot(slot.Name); ok && stored.Turn > bestTurn {
			bestTurn = stored.Turn
			bestStep = step
			bestName = slot.Name
		}
	}
	return bestStep, bestName
}

type yesNoAnswer int

const (
	answerUnknown yesNoAnswer = iota
	answerYes
	answerNo
)

var yesWords = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "yup": true, "correct": true,
	"right": true, "sure": true, "ok": true, "okay": true, "confirm": true,
	"confirmed": true, "exactly": true,
}

var noWords = map[string]bool{
	"no": true, "nope": true, "nah": true, "wrong": true, "incorrect": true,
	"negative": true,
}

func classifyYesNo(utterance string) yesNoAnswer {
	tokens := lowerTokens(utterance)
	if len(tokens) == 0 {
		return answerUnknown
	}
	yes, no := false, false
	for _, tok := range tokens {
		if yesWords[tok] {
			yes = true
		}
		if noWords[tok] {
			no = true
		}
	}
	switch {
	case yes && !no:
		return answerYes
	case no && !yes:
		return answerNo
	default:
		return answerUnknown
	}
}

// renderTemplate substitutes {slot} placeholders with collected values.
func renderTemplate(tpl string, sess *domain.CallSession) string {
	out := tpl
	for name, v := range sess.Slots {
		out = strings.ReplaceAll(out, "{"+name+"}", v.Value)
	}
	return out
}
