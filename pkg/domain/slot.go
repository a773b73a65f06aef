package domain

// TypeClass declares which validation predicate a slot's values must satisfy.
type TypeClass string

const (
	TypeFreeText TypeClass = "free_text"
	TypePhone    TypeClass = "phone"
	TypeAddress  TypeClass = "address"
	TypeTemporal TypeClass = "temporal"
	TypeNumeric  TypeClass = "numeric"
)

// ConfirmPolicy governs whether a captured value is read back to the caller
// before completion.
type ConfirmPolicy string

const (
	ConfirmNever     ConfirmPolicy = "never"
	ConfirmIfMissing ConfirmPolicy = "if_missing"
	ConfirmAlways    ConfirmPolicy = "always"
)

// Slot is one named field of a booking flow.
type Slot struct {
	Name     string        `json:"name" yaml:"name"`
	Type     TypeClass     `json:"type" yaml:"type"`
	Required bool          `json:"required" yaml:"required"`
	Confirm  ConfirmPolicy `json:"confirm,omitempty" yaml:"confirm"`

	// Prompt is spoken when the flow reaches this slot's step.
	Prompt string `json:"prompt" yaml:"prompt"`
	// RetryPrompt is spoken after a rejected write; falls back to Prompt.
	RetryPrompt string `json:"retry_prompt,omitempty" yaml:"retry_prompt"`
}

// BookingFlowDefinition is an ordered slot sequence plus the templates spoken
// at confirmation and completion. Owned by tenant configuration; the engine
// treats it as read-only.
type BookingFlowDefinition struct {
	ID    string `json:"id" yaml:"id"`
	Slots []Slot `json:"slots" yaml:"slots"`

	ConfirmationTemplate string `json:"confirmation_template" yaml:"confirmation_template"`
	CompletionTemplate   string `json:"completion_template" yaml:"completion_template"`
}

// SlotAt returns the slot for a step index.
func (f *BookingFlowDefinition) SlotAt(step int) (Slot, bool) {
	if step < 0 || step >= len(f.Slots) {
		return Slot{}, false
	}
	return f.Slots[step], true
}

// IndexOf returns the step index of the named slot, or -1.
func (f *BookingFlowDefinition) IndexOf(name string) int {
	for i, s := range f.Slots {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// Find returns the named slot definition.
func (f *BookingFlowDefinition) Find(name string) (Slot, bool) {
	if i := f.IndexOf(name); i >= 0 {
		return f.Slots[i], true
	}
	return Slot{}, false
}
