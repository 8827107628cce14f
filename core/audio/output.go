package audio

import "context"

// Output is the hardware sink the engine plays through. It is constructed
// once per process and handed to the engine.
type Output interface {
	// Resume brings a suspended sink back; it may block.
	Resume(ctx context.Context) error
	Suspended() bool
	// CreateVoice binds a new voice to buf. The voice is silent until started.
	CreateVoice(buf *Buffer) (Voice, error)
	// Now is the sink clock in seconds.
	Now() float64
	// SetVolume sets the master gain, 0 to 1.
	SetVolume(v float64)
}

// Voice is one playback of one buffer. A voice must be stopped and
// disconnected before it is discarded.
type Voice interface {
	SetLoop(loop bool)
	// OnEnded registers fn to be called when a non-looping voice plays to
	// its end. It is not called after Stop.
	OnEnded(fn func())
	Start(offset float64) error
	Stop()
	Disconnect()
}
