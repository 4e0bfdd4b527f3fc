// Package syncclient implements the listener side of the synchronized
// playback protocol: clock reconciliation against the server, scheduling
// of broadcast start instants, and continuous drift correction.
package syncclient

// Renderer is the local audio output the scheduler drives. Implementations
// wrap whatever actually produces sound; all positions are seconds into
// the current track.
type Renderer interface {
	// Prewarm gives the renderer a chance to buffer/unlock ahead of an
	// armed start (e.g. a muted trial start/stop).
	Prewarm(trackRef string)
	// Start begins rendering trackRef at positionSec.
	Start(trackRef string, positionSec float64)
	// Pause stops rendering, holding at positionSec.
	Pause(positionSec float64)
	// Position reports the currently rendered position.
	Position() float64
	// SetRate adjusts effective playback speed (1.0 = normal).
	SetRate(rate float64)
}
