package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/switchboard/pkg/config"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/stretchr/testify/require"
)

const sampleTenantYAML = `
tenant_id: acme
version: "7"
default_flow_id: booking
flows:
  - id: booking
    slots:
      - name: name
        type: free_text
        required: true
        prompt: "Can I get your name?"
      - name: phone
        type: phone
        required: true
        prompt: "What's the best number to reach you?"
      - name: address
        type: address
        required: true
        prompt: "What's the service address?"
      - name: time
        type: temporal
        required: true
        prompt: "When works best for you?"
    confirmation_template: "I have {name} at {address}, {time}. Is that right?"
    completion_template: "You're booked! We'll call {phone} to confirm."
cards:
  - id: book-appointment
    priority: 10
    triggers: ["book an appointment", "schedule a visit", "set something up"]
    responses: ["Great, let's get you scheduled."]
    signals: [schedule_accepted]
  - id: hours
    triggers: ["what are your hours", "when are you open"]
    negative_triggers: ["after hours emergency"]
    responses: ["We're open weekdays eight to six."]
thresholds:
  deterministic: 0.8
  semantic: 0.75
llm:
  enabled: true
  daily_budget_units: 100
validation:
  street_suffixes: ["street", "st", "avenue", "ave", "road", "rd", "boulevard", "blvd", "lane", "ln", "drive", "dr"]
  urgency_phrases: ["as soon as possible", "asap", "right away", "as early as possible"]
  time_of_day_words: ["morning", "afternoon", "evening", "noon", "tonight"]
  relative_day_words: ["today", "tomorrow", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"]
normalizer:
  filler_words: ["um", "uh", "like", "you know", "please"]
  synonyms:
    appt: appointment
    sched: schedule
`

func writeTenantFile(t *testing.T, dir, tenant, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, tenant+".yaml"), []byte(content), 0o644))
}

func TestDirLoader_LoadsAndDefaults(t *testing.T) {
	dir := t.TempDir()
	writeTenantFile(t, dir, "acme", sampleTenantYAML)

	loader := config.NewDirLoader(dir)
	cfg, err := loader.Load(context.Background(), "acme")
	require.NoError(t, err)

	require.Equal(t, "acme", cfg.TenantID)
	require.Equal(t, "7", cfg.Version)
	require.Len(t, cfg.Flows, 1)
	require.Len(t, cfg.Cards, 2)

	// Defaults applied.
	require.Equal(t, 3, cfg.RewindCap)
	require.NotZero(t, cfg.SemanticTimeout)
	require.NotZero(t, cfg.LLM.Timeout)
	require.EqualValues(t, 1, cfg.LLM.CostPerCallUnits)
	require.NotEmpty(t, cfg.Replies.Default)
	require.NotEmpty(t, cfg.Replies.Transfer)

	flow, ok := cfg.Flow("")
	require.True(t, ok, "default flow should resolve")
	require.Equal(t, "booking", flow.ID)
	require.Equal(t, 3, flow.IndexOf("time"))

	card, ok := cfg.Card("book-appointment")
	require.True(t, ok)
	require.True(t, domain.HasSignal(card.Signals, domain.SignalScheduleAccepted))
}

func TestDirLoader_UnknownTenant(t *testing.T) {
	loader := config.NewDirLoader(t.TempDir())
	_, err := loader.Load(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestParse_RejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"duplicate slot", `
tenant_id: t
flows:
  - id: f
    slots:
      - {name: a, type: free_text, prompt: "?"}
      - {name: a, type: free_text, prompt: "?"}
`},
		{"unknown type class", `
tenant_id: t
flows:
  - id: f
    slots:
      - {name: a, type: telepathic, prompt: "?"}
`},
		{"card without triggers", `
tenant_id: t
cards:
  - id: c
    responses: ["hi"]
`},
		{"default flow missing", `
tenant_id: t
default_flow_id: nope
flows:
  - id: f
    slots:
      - {name: a, type: free_text, prompt: "?"}
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.yaml), "t")
			require.Error(t, err)
		})
	}
}

func TestCache_ServesUntilInvalidated(t *testing.T) {
	ctx := context.Background()

	src := &countingLoader{cfg: mustParse(t, sampleTenantYAML)}
	cache := config.NewCache(src)

	for i := 0; i < 3; i++ {
		_, err := cache.Tenant(ctx, "acme")
		require.NoError(t, err)
	}
	require.Equal(t, 1, src.loads, "entry should be served from cache")

	// New version published upstream, then invalidation event arrives.
	next := mustParse(t, sampleTenantYAML)
	next.Version = "8"
	src.cfg = next
	cache.Invalidate("acme", "8")

	cfg, err := cache.Tenant(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, "8", cfg.Version)
	require.Equal(t, 2, src.loads)
}

func TestCache_BoundedStalenessWithoutEvent(t *testing.T) {
	ctx := context.Background()

	src := &countingLoader{cfg: mustParse(t, sampleTenantYAML)}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := config.NewCache(src,
		config.WithMaxAge(time.Minute),
		config.WithCacheClock(func() time.Time { return now }),
	)

	_, err := cache.Tenant(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, 1, src.loads)

	// Past the staleness window the cache reloads even with no event.
	now = now.Add(2 * time.Minute)
	_, err = cache.Tenant(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, 2, src.loads)
}

func TestCache_ServesStaleCopyOnLoadFailure(t *testing.T) {
	ctx := context.Background()

	src := &countingLoader{cfg: mustParse(t, sampleTenantYAML)}
	cache := config.NewCache(src)

	_, err := cache.Tenant(ctx, "acme")
	require.NoError(t, err)

	src.err = errors.New("config service down")
	cache.Invalidate("acme", "9")

	cfg, err := cache.Tenant(ctx, "acme")
	require.NoError(t, err, "cached copy should be served while the source is down")
	require.Equal(t, "7", cfg.Version)
}

func TestCache_InvalidateBeforeFirstLoad(t *testing.T) {
	ctx := context.Background()

	// An invalidation for a tenant that was never cached leaves a
	// placeholder entry; if the load then fails, the error must surface
	// instead of a nil config.
	src := &countingLoader{err: errors.New("config service down")}
	cache := config.NewCache(src)
	cache.Invalidate("acme", "2")

	cfg, err := cache.Tenant(ctx, "acme")
	require.Error(t, err)
	require.Nil(t, cfg)

	// Once the source recovers, the version floor from the event applies.
	src.err = nil
	src.cfg = mustParse(t, sampleTenantYAML)
	cfg, err = cache.Tenant(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, "7", cfg.Version)
}

type countingLoader struct {
	cfg   *domain.TenantConfig
	err   error
	loads int
}

func (l *countingLoader) Load(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	l.loads++
	if l.err != nil {
		return nil, l.err
	}
	return l.cfg, nil
}

func mustParse(t *testing.T, y string) *domain.TenantConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(y), "acme")
	require.NoError(t, err)
	return cfg
}
