// Package session coordinates access to call sessions. It guarantees the
// per-call ordering invariant: turns for one call are processed strictly in
// sequence, while different calls proceed fully in parallel.
package session
