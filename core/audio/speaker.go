package audio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"SampleDeck/logger"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

// SpeakerOutput plays through the system audio device. The device is opened
// lazily on the first Resume, so a new output starts suspended.
type SpeakerOutput struct {
	format     beep.Format
	bufferSize time.Duration
	start      time.Time

	mu          sync.Mutex
	initialized bool
	suspended   bool
	volume      float64
	voices      map[*speakerVoice]struct{}
}

// NewSpeakerOutput creates an output for stereo PCM at sampleRate.
func NewSpeakerOutput(sampleRate int, bufferSize time.Duration, volume float64) *SpeakerOutput {
	return &SpeakerOutput{
		format: beep.Format{
			SampleRate:  beep.SampleRate(sampleRate),
			NumChannels: 2,
			Precision:   2,
		},
		bufferSize: bufferSize,
		start:      time.Now(),
		volume:     volume,
		voices:     make(map[*speakerVoice]struct{}),
	}
}

func (o *SpeakerOutput) Resume(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if !o.initialized {
		rate := o.format.SampleRate
		if err := speaker.Init(rate, rate.N(o.bufferSize)); err != nil {
			return fmt.Errorf("%w: init speaker: %v", ErrHardware, err)
		}
		o.initialized = true
		o.suspended = false
		logger.Info("Speaker initialized",
			logger.Int("sampleRate", int(rate)),
			logger.Duration("buffer", o.bufferSize))
		return nil
	}

	if o.suspended {
		if err := speaker.Resume(); err != nil {
			return fmt.Errorf("%w: resume speaker: %v", ErrHardware, err)
		}
		o.suspended = false
		logger.Info("Speaker resumed")
	}
	return nil
}

// Suspend pauses the device until the next Resume.
func (o *SpeakerOutput) Suspend() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.initialized || o.suspended {
		return nil
	}
	if err := speaker.Suspend(); err != nil {
		return fmt.Errorf("%w: suspend speaker: %v", ErrHardware, err)
	}
	o.suspended = true
	return nil
}

func (o *SpeakerOutput) Suspended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.initialized || o.suspended
}

func (o *SpeakerOutput) Now() float64 {
	return time.Since(o.start).Seconds()
}

func (o *SpeakerOutput) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.volume = v
	speaker.Lock()
	for voice := range o.voices {
		applyVolume(voice.gain, v)
	}
	speaker.Unlock()
}

func (o *SpeakerOutput) CreateVoice(buf *Buffer) (Voice, error) {
	if buf == nil || buf.Len() == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrHardware)
	}
	if buf.Format().SampleRate != o.format.SampleRate {
		return nil, fmt.Errorf("%w: buffer rate %d does not match output rate %d",
			ErrHardware, buf.Format().SampleRate, o.format.SampleRate)
	}
	return &speakerVoice{out: o, buf: buf}, nil
}

func (o *SpeakerOutput) attach(v *speakerVoice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.voices[v] = struct{}{}
	applyVolume(v.gain, o.volume)
}

func (o *SpeakerOutput) detach(v *speakerVoice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.voices, v)
}

// applyVolume maps a linear 0..1 gain onto a base-2 effects.Volume.
// Callers hold the speaker lock when the streamer is already playing.
func applyVolume(gain *effects.Volume, v float64) {
	if v <= 0 {
		gain.Silent = true
		return
	}
	gain.Silent = false
	gain.Volume = math.Log2(min(v, 1))
}

type speakerVoice struct {
	out *SpeakerOutput
	buf *Buffer

	mu      sync.Mutex
	loop    bool
	onEnded func()
	ctrl    *beep.Ctrl
	gain    *effects.Volume
	stopped bool
}

func (v *speakerVoice) SetLoop(loop bool) {
	v.mu.Lock()
	v.loop = loop
	v.mu.Unlock()
}

func (v *speakerVoice) OnEnded(fn func()) {
	v.mu.Lock()
	v.onEnded = fn
	v.mu.Unlock()
}

func (v *speakerVoice) Start(offset float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.ctrl != nil {
		return fmt.Errorf("%w: voice already started", ErrHardware)
	}

	n := v.buf.Len()
	pos := v.buf.Format().SampleRate.N(time.Duration(offset * float64(time.Second)))
	pos = max(0, min(pos, n-1))

	var s beep.Streamer
	if v.loop {
		s = beep.Seq(v.buf.Streamer(pos, n), beep.Loop(-1, v.buf.Streamer(0, n)))
	} else {
		// The callback runs on the speaker goroutine with the speaker lock held.
		s = beep.Seq(v.buf.Streamer(pos, n), beep.Callback(func() { go v.ended() }))
	}

	v.ctrl = &beep.Ctrl{Streamer: s}
	v.gain = &effects.Volume{Streamer: v.ctrl, Base: 2}
	v.out.attach(v)
	speaker.Play(v.gain)
	return nil
}

func (v *speakerVoice) ended() {
	v.mu.Lock()
	fn := v.onEnded
	stopped := v.stopped
	v.mu.Unlock()

	if !stopped && fn != nil {
		fn()
	}
}

func (v *speakerVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.stopped {
		return
	}
	v.stopped = true
	if v.ctrl != nil {
		speaker.Lock()
		v.ctrl.Streamer = nil
		speaker.Unlock()
	}
}

func (v *speakerVoice) Disconnect() {
	v.out.detach(v)
}
