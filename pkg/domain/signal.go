package domain

// Signal is an explicit marker a delegate attaches to its output to request a
// lane transition or other orchestrator action. Signals are the only way a
// delegate influences the lane; it never writes session state itself.
type Signal string

const (
	// SignalScheduleAccepted means the caller agreed to be booked. The lane
	// machine only locks the booking lane if the first slot write of the
	// same turn also succeeds.
	SignalScheduleAccepted Signal = "schedule_accepted"

	// SignalEscalate requests a human handoff.
	SignalEscalate Signal = "escalate"

	// SignalHangup is the gateway's disconnect marker.
	SignalHangup Signal = "hangup"

	// SignalBookingComplete means all required slots were confirmed.
	SignalBookingComplete Signal = "booking_complete"

	// SignalTerminate asks the gateway to end the call after playback.
	SignalTerminate Signal = "terminate"
)

// HasSignal reports whether sig is present in set.
func HasSignal(set []Signal, sig Signal) bool {
	for _, s := range set {
		if s == sig {
			return true
		}
	}
	return false
}
