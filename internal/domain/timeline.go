package domain

// Timeline is the authoritative playback state of a room.
//
// While Running, the current position is
// BasePositionSec + (serverNowMs-EpochMs)/1000; while stopped it is
// BasePositionSec. EpochMs is always a server-clock instant, never a
// client-supplied timestamp. A timeline without a track is never running.
type Timeline struct {
	TrackRef        string
	Running         bool
	BasePositionSec float64
	EpochMs         int64
}
