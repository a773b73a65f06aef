// Package booking implements the structured data-collection flow: an ordered
// slot walk guarded by a validation pipeline that checks values at write
// time, before every step advance and before confirmation. The dominant
// failure mode it defends against is free-text extraction copying one
// field's value into another (an address landing in a time slot).
package booking

import (
	"regexp"
	"strings"

	"github.com/aretw0/switchboard/pkg/domain"
)

// clockTimeRe matches explicit clock times: "3pm", "10:30", "10:30 am".
var clockTimeRe = regexp.MustCompile(`\b([01]?\d|2[0-3])(:[0-5]\d)\b|\b([01]?\d|2[0-3])(:[0-5]\d)?\s*(am|pm|a\.m\.|p\.m\.)\b`)

// digitRunRe finds runs of digits, used for the bare-number check.
var digitRunRe = regexp.MustCompile(`\d+`)

// nonDigitRe strips everything that is not a digit.
var nonDigitRe = regexp.MustCompile(`\D`)

// Pipeline validates a single proposed (slot, value) write. Pure functions
// over the tenant's token lists; it never mutates the session.
type Pipeline struct {
	cfg domain.ValidationConfig

	streetSuffixes map[string]bool
	timeOfDay      map[string]bool
	relativeDay    map[string]bool
	urgency        []string
}

// NewPipeline compiles a tenant's validation lists.
func NewPipeline(cfg domain.ValidationConfig) *Pipeline {
	p := &Pipeline{
		cfg:            cfg,
		streetSuffixes: toSet(cfg.StreetSuffixes),
		timeOfDay:      toSet(cfg.TimeOfDayWords),
		relativeDay:    toSet(cfg.RelativeDayWords),
	}
	for _, u := range cfg.UrgencyPhrases {
		p.urgency = append(p.urgency, strings.ToLower(strings.TrimSpace(u)))
	}
	return p
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = true
		}
	}
	return set
}

// Validate checks value against the slot's type-class predicate. The session
// supplies cross-slot context (the stored address for the temporal check).
func (p *Pipeline) Validate(flow *domain.BookingFlowDefinition, slot domain.Slot, value string, sess *domain.CallSession) domain.WriteOutcome {
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.Rejected(domain.RejectEmpty)
	}
	// A zero MaxValueLen means no cap, matching the budget-units convention.
	if p.cfg.MaxValueLen > 0 && len(value) > p.cfg.MaxValueLen {
		return domain.Rejected(domain.RejectTooLong)
	}

	switch slot.Type {
	case domain.TypeFreeText:
		return domain.Accepted()
	case domain.TypePhone:
		return p.validatePhone(value)
	case domain.TypeAddress:
		return p.validateAddress(value)
	case domain.TypeNumeric:
		return p.validateNumeric(value)
	case domain.TypeTemporal:
		return p.validateTemporal(flow, value, sess)
	default:
		return domain.Rejected(domain.RejectUnknownSlot)
	}
}

// SweepResult names a stored slot cleared by a validation pass.
type SweepResult struct {
	Slot   string
	Step   int
	Reason domain.RejectReason
}

// Sweep re-validates every stored slot against its predicate and reports the
// ones that no longer pass. It does not mutate the session; callers clear
// the slots and rewind.
func (p *Pipeline) Sweep(flow *domain.BookingFlowDefinition, sess *domain.CallSession) []SweepResult {
	var fixes []SweepResult
	for step, slot := range flow.Slots {
		stored, ok := sess.Slot(slot.Name)
		if !ok {
			continue
		}
		if out := p.Validate(flow, slot, stored.Value, sess); !out.OK() {
			fixes = append(fixes, SweepResult{Slot: slot.Name, Step: step, Reason: out.Reason})
		}
	}
	return fixes
}

// MissingRequired returns the step of the first required slot that is absent
// or invalid, for the pre-confirmation invariant. ok=false means every
// required slot passes.
func (p *Pipeline) MissingRequired(flow *domain.BookingFlowDefinition, sess *domain.CallSession) (step int, slot string, reason domain.RejectReason, ok bool) {
	for i, s := range flow.Slots {
		if !s.Required {
			continue
		}
		stored, present := sess.Slot(s.Name)
		if !present {
			return i, s.Name, domain.RejectEmpty, true
		}
		if out := p.Validate(flow, s, stored.Value, sess); !out.OK() {
			return i, s.Name, out.Reason, true
		}
	}
	return 0, "", "", false
}

func (p *Pipeline) validatePhone(value string) domain.WriteOutcome {
	digits := nonDigitRe.ReplaceAllString(value, "")
	if len(digits) < 7 || len(digits) > 15 {
		return domain.Rejected(domain.RejectNotPhone)
	}
	// A phone utterance is mostly digits once separators are gone.
	stripped := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "", ".", "").Replace(value)
	if len(digits)*2 < len(stripped) {
		return domain.Rejected(domain.RejectNotPhone)
	}
	return domain.Accepted()
}

func (p *Pipeline) validateAddress(value string) domain.WriteOutcome {
	tokens := lowerTokens(value)
	hasSuffix := false
	for _, tok := range tokens {
		if p.streetSuffixes[tok] {
			hasSuffix = true
			break
		}
	}
	hasNumber := digitRunRe.MatchString(value)

	// Accept "123 Elm Street" and "Elm Street" but not a bare number or a
	// suffix-less single word.
	if hasSuffix && len(tokens) >= 2 {
		return domain.Accepted()
	}
	if hasNumber && len(tokens) >= 3 {
		return domain.Accepted()
	}
	return domain.Rejected(domain.RejectNotAddress)
}

func (p *Pipeline) validateNumeric(value string) domain.WriteOutcome {
	digits := nonDigitRe.ReplaceAllString(value, "")
	if digits == "" {
		return domain.Rejected(domain.RejectNotNumeric)
	}
	// Tolerate separators but nothing word-like.
	for _, tok := range lowerTokens(value) {
		if nonDigitRe.MatchString(tok) {
			return domain.Rejected(domain.RejectNotNumeric)
		}
	}
	return domain.Accepted()
}

// validateTemporal accepts time-of-day phrases, explicit clock times,
// relative days and urgency phrases. Negative checks run first: street
// suffixes, the stored address value and long bare numbers all mean the
// value belongs to a different field.
func (p *Pipeline) validateTemporal(flow *domain.BookingFlowDefinition, value string, sess *domain.CallSession) domain.WriteOutcome {
	lower := strings.ToLower(strings.TrimSpace(value))
	tokens := lowerTokens(value)

	for _, tok := range tokens {
		if p.streetSuffixes[tok] {
			return domain.Rejected(domain.RejectStreetSuffix)
		}
	}

	if addr := p.storedAddress(flow, sess); addr != "" {
		if lower == addr || strings.Contains(lower, addr) || strings.Contains(addr, lower) {
			return domain.Rejected(domain.RejectContainsAddress)
		}
	}

	for _, run := range digitRunRe.FindAllString(value, -1) {
		if len(run) > p.cfg.MaxBareNumberLen {
			return domain.Rejected(domain.RejectBareNumber)
		}
	}

	for _, u := range p.urgency {
		if u != "" && strings.Contains(lower, u) {
			return domain.Accepted()
		}
	}
	if clockTimeRe.MatchString(lower) {
		return domain.Accepted()
	}
	for _, tok := range tokens {
		if p.timeOfDay[tok] || p.relativeDay[tok] {
			return domain.Accepted()
		}
	}

	return domain.Rejected(domain.RejectNotTemporal)
}

// storedAddress returns the lowered value of the flow's first stored
// address-class slot.
func (p *Pipeline) storedAddress(flow *domain.BookingFlowDefinition, sess *domain.CallSession) string {
	if flow == nil || sess == nil {
		return ""
	}
	for _, s := range flow.Slots {
		if s.Type != domain.TypeAddress {
			continue
		}
		if stored, ok := sess.Slot(s.Name); ok {
			return strings.ToLower(strings.TrimSpace(stored.Value))
		}
	}
	return ""
}

func lowerTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == ';' || r == '!' || r == '?'
	})
}
