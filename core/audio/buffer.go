package audio

import "github.com/gopxl/beep/v2"

// Buffer is a decoded sample. Buffers are shared read-only between the
// cache, the engine and any other caller of the pipeline.
type Buffer struct {
	pcm      *beep.Buffer
	duration float64
}

// NewBuffer wraps decoded PCM.
func NewBuffer(pcm *beep.Buffer) *Buffer {
	return &Buffer{
		pcm:      pcm,
		duration: pcm.Format().SampleRate.D(pcm.Len()).Seconds(),
	}
}

// Duration is the decoded length in seconds.
func (b *Buffer) Duration() float64 { return b.duration }

// Len is the number of frames.
func (b *Buffer) Len() int {
	if b.pcm == nil {
		return 0
	}
	return b.pcm.Len()
}

// Format describes the PCM layout.
func (b *Buffer) Format() beep.Format {
	if b.pcm == nil {
		return beep.Format{}
	}
	return b.pcm.Format()
}

// Streamer returns a seekable streamer over frames [from, to).
func (b *Buffer) Streamer(from, to int) beep.StreamSeeker {
	return b.pcm.Streamer(from, to)
}
