// Package domain contains the core entities of the turn-processing engine:
// call sessions, lanes, booking slots, scenario cards, routing decisions and
// audit events. It has no dependencies on adapters or transport and every
// type here is safe to serialize.
package domain
