package lane

import (
	"context"
	"log/slog"

	"github.com/aretw0/switchboard/internal/metrics"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
)

// speaker identifies a component that can produce spoken content.
type speaker string

const (
	speakerRouter  speaker = "router"
	speakerBooking speaker = "booking"
	speakerSystem  speaker = "system"
)

// emission is one component's proposed spoken content for a turn.
type emission struct {
	speaker speaker
	text    string
}

// ownerFor returns the component that owns spoken content for the session's
// current state. A session with a flow in progress is booking-owned even
// before the lane locks, so a stray router reply cannot interleave with slot
// prompts.
func ownerFor(sess *domain.CallSession) speaker {
	switch {
	case sess.Lane == domain.LaneTransfer, sess.Lane == domain.LaneError, sess.Lane == domain.LaneTerminated:
		return speakerSystem
	case sess.BookingLocked, sess.FlowID != "":
		return speakerBooking
	default:
		return speakerRouter
	}
}

// arbiter enforces single-speaker ownership: exactly one component supplies
// the turn's spoken content. Non-owner content is a collision fault, recorded
// and discarded.
type arbiter struct {
	sink   ports.EventSink
	mx     *metrics.Metrics
	logger *slog.Logger
}

// resolve picks the owning component's emission, deriving the owner from the
// session itself so dispatch mistakes cannot vouch for their own output. Every
// non-owner emission with content is discarded and counted as a collision.
// When the owner produced nothing the turn falls back to the last valid
// response, then to the tenant safe filler.
func (a *arbiter) resolve(ctx context.Context, cfg *domain.TenantConfig, sess *domain.CallSession, ems []emission) (string, bool) {
	own := ownerFor(sess)
	spoken := ""
	collided := false

	for _, em := range ems {
		if em.text == "" {
			continue
		}
		if em.speaker == own {
			if spoken == "" {
				spoken = em.text
			}
			continue
		}

		collided = true
		a.mx.SpeakerCollisions.Inc()
		if a.sink != nil {
			a.sink.Emit(ctx, domain.NewEvent(domain.EventSpeakerCollision, sess.ID, sess.TenantID, sess.TurnIndex, map[string]any{
				"speaker": string(em.speaker),
				"owner":   string(own),
			}))
		}
		a.logger.Warn("speaker collision, content discarded",
			"call_id", sess.ID,
			"speaker", string(em.speaker),
			"owner", string(own),
		)
	}

	if spoken == "" {
		if sess.LastSpoken != "" {
			spoken = sess.LastSpoken
		} else {
			spoken = cfg.Replies.SafeFiller
		}
	}
	return spoken, collided
}
