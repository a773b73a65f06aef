package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
)

const maskedValue = "***"

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks the values of slots whose
// names match any of the given patterns before the session is persisted.
// Masking is one-way and applies only to the stored copy; the in-memory
// session keeps its real values. Intended for archival stores where the
// booking record outlives the call.
func NewPIIMiddleware(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile pii pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: compiled}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, callID string, session *domain.CallSession) error {
	masked := session.Clone()
	for name, slot := range masked.Slots {
		if slot.Value == "" || !m.matches(name) {
			continue
		}
		slot.Value = maskedValue
		masked.Slots[name] = slot
	}
	return m.next.Save(ctx, callID, masked)
}

func (m *piiMiddleware) Load(ctx context.Context, callID string) (*domain.CallSession, error) {
	return m.next.Load(ctx, callID)
}

func (m *piiMiddleware) Delete(ctx context.Context, callID string) error {
	return m.next.Delete(ctx, callID)
}

func (m *piiMiddleware) matches(name string) bool {
	for _, re := range m.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
