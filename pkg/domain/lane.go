package domain

// Lane is the top-level conversational mode. It governs which component owns
// the spoken content of a turn.
type Lane string

const (
	LaneDiscovery  Lane = "discovery"
	LaneBooking    Lane = "booking"
	LaneTransfer   Lane = "transfer"
	LaneError      Lane = "error"
	LaneTerminated Lane = "terminated"
)

// Terminal reports whether no further turns are processed in this lane.
func (l Lane) Terminal() bool {
	return l == LaneTerminated
}

// Valid reports whether l is one of the known lanes.
func (l Lane) Valid() bool {
	switch l {
	case LaneDiscovery, LaneBooking, LaneTransfer, LaneError, LaneTerminated:
		return true
	}
	return false
}
