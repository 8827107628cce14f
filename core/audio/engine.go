package audio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"SampleDeck/logger"
	"SampleDeck/model"
)

// DefaultVolume is the gain restored when unmuting.
const DefaultVolume = 0.8

// tickInterval drives UpdateTime at roughly display refresh rate.
const tickInterval = time.Second / 60

// Status is the transport state of the engine.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusPlaying
	StatusPaused
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TransportState is a snapshot of the engine.
type TransportState struct {
	Asset       *model.SampleAsset `json:"asset,omitempty"`
	Status      Status             `json:"status"`
	Paused      bool               `json:"paused"`
	CurrentTime float64            `json:"currentTime"`
	Duration    float64            `json:"duration"`
	Volume      float64            `json:"volume"`
	Looping     bool               `json:"looping"`
	Repeat      bool               `json:"repeat"`
}

// Progress is the playback position as a fraction of the duration.
func (s TransportState) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return s.CurrentTime / s.Duration
}

// Engine plays one sample at a time through an Output. At most one voice
// is connected at any moment.
//
// Every request that may start a voice (Play, Resume, Seek while playing)
// takes a token before it waits on the pipeline. Select of another asset,
// Stop, Pause and any later request invalidate earlier tokens; a request whose
// token is no longer current when its buffer arrives does nothing.
type Engine struct {
	out      Output
	pipeline *Pipeline

	mu          sync.Mutex
	current     *model.SampleAsset
	status      Status
	voice       Voice
	voiceAsset  string
	looping     bool
	startTime   float64
	pauseTime   float64
	currentTime float64
	duration    float64
	volume      float64
	repeat      bool

	target *model.SampleAsset // asset of the latest voice-starting request
	seq    uint64
}

// NewEngine creates an engine playing through out.
func NewEngine(out Output, pipeline *Pipeline, volume float64, repeat bool) *Engine {
	e := &Engine{
		out:      out,
		pipeline: pipeline,
		status:   StatusIdle,
		volume:   clampVolume(volume),
		repeat:   repeat,
	}
	out.SetVolume(e.volume)
	return e
}

// State returns a snapshot of the transport.
func (e *Engine) State() TransportState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return TransportState{
		Asset:       e.current,
		Status:      e.status,
		Paused:      e.status != StatusPlaying,
		CurrentTime: e.currentTime,
		Duration:    e.duration,
		Volume:      e.volume,
		Looping:     e.looping,
		Repeat:      e.repeat,
	}
}

// Select makes asset current without starting playback. Selecting a
// different asset stops the current voice and cancels pending starts.
func (e *Engine) Select(asset *model.SampleAsset) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.current.UUID != asset.UUID {
		e.stopLocked()
		e.current = asset
		e.duration = asset.DurationSeconds()
		e.status = StatusStopped
	}
	if e.target == nil || e.target.UUID != asset.UUID {
		e.target = asset
		e.seq++
	}
}

// Play starts asset at from seconds once its buffer is available. If a newer
// request supersedes this one while the buffer loads, Play returns nil
// without touching the transport.
func (e *Engine) Play(ctx context.Context, asset *model.SampleAsset, from float64) error {
	logger.Debug("Request to play",
		logger.String("uuid", asset.UUID),
		logger.String("name", asset.Name))

	e.mu.Lock()
	token := e.beginLocked(asset)
	e.mu.Unlock()

	if e.out.Suspended() {
		if err := e.out.Resume(ctx); err != nil {
			e.mu.Lock()
			if token == e.seq {
				e.failLocked()
			}
			e.mu.Unlock()
			logger.Error("Failed to resume audio output", logger.ErrorField(err))
			return err
		}
	}

	return e.acquireAndStart(ctx, asset, token, from)
}

// Pause stops the voice and keeps its position. It is a no-op unless
// playing. A start still waiting for another asset's buffer is cancelled.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusPlaying {
		return
	}
	e.seq++
	e.updateTimeLocked()
	e.stopVoiceLocked()
	e.pauseTime = e.currentTime
	e.status = StatusPaused
}

// Resume replays the current asset from the stored position.
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	if e.current == nil {
		e.mu.Unlock()
		return nil
	}
	asset := e.current
	from := e.pauseTime
	token := e.beginLocked(asset)
	e.mu.Unlock()

	if e.out.Suspended() {
		if err := e.out.Resume(ctx); err != nil {
			logger.Error("Failed to resume audio output", logger.ErrorField(err))
			e.mu.Lock()
			if token == e.seq {
				e.failLocked()
			}
			e.mu.Unlock()
			return err
		}
	}

	return e.acquireAndStart(ctx, asset, token, from)
}

// Stop stops the voice, rewinds to zero and cancels pending starts. It is idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	e.stopLocked()
	if e.current == nil {
		e.status = StatusIdle
	} else {
		e.status = StatusStopped
	}
}

// Seek moves to progress (0 to 1) of the duration. While playing or loading
// the voice restarts there; otherwise only the stored position changes.
// When a start for another asset is still loading, the seek applies to that
// asset, using its metadata duration.
func (e *Engine) Seek(ctx context.Context, progress float64) error {
	e.mu.Lock()
	progress = math.Max(0, math.Min(progress, 1))
	active := e.status == StatusPlaying || e.status == StatusLoading

	asset, duration := e.current, e.duration
	if active && e.target != nil && (asset == nil || e.target.UUID != asset.UUID) {
		asset, duration = e.target, e.target.DurationSeconds()
	}
	if asset == nil {
		e.mu.Unlock()
		return nil
	}
	at := progress * duration

	if !active {
		e.pauseTime = at
		e.currentTime = at
		e.mu.Unlock()
		return nil
	}

	token := e.beginLocked(asset)
	e.mu.Unlock()

	return e.acquireAndStart(ctx, asset, token, at)
}

// TogglePlay pauses while playing, cancels a start that is still loading,
// and resumes otherwise.
func (e *Engine) TogglePlay(ctx context.Context) error {
	e.mu.Lock()
	switch e.status {
	case StatusPlaying:
		e.mu.Unlock()
		e.Pause()
		return nil
	case StatusLoading:
		e.seq++
		e.failLocked()
		e.mu.Unlock()
		logger.Debug("Cancelled pending start")
		return nil
	}
	e.mu.Unlock()
	return e.Resume(ctx)
}

// ToggleMute switches between silence and the default volume.
func (e *Engine) ToggleMute() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.volume > 0 {
		e.volume = 0
	} else {
		e.volume = DefaultVolume
	}
	e.out.SetVolume(e.volume)
}

// SetVolume sets the output gain, clamped to 0..1.
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.volume = clampVolume(v)
	e.out.SetVolume(e.volume)
}

// SetRepeat controls whether loop samples repeat. It applies from the next voice start.
func (e *Engine) SetRepeat(repeat bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.repeat = repeat
}

// UpdateTime recomputes the position from the output clock.
func (e *Engine) UpdateTime() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateTimeLocked()
}

// Run calls UpdateTime every frame until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.UpdateTime()
		}
	}
}

// beginLocked issues a token for a request targeting asset.
func (e *Engine) beginLocked(asset *model.SampleAsset) uint64 {
	e.target = asset
	e.seq++
	if e.status != StatusPlaying {
		e.status = StatusLoading
	}
	return e.seq
}

func (e *Engine) acquireAndStart(ctx context.Context, asset *model.SampleAsset, token uint64, offset float64) error {
	buf, err := e.pipeline.Acquire(ctx, asset)

	e.mu.Lock()
	defer e.mu.Unlock()

	if token != e.seq {
		logger.Debug("Ignoring superseded playback request", logger.String("uuid", asset.UUID))
		return nil
	}
	if err != nil {
		logger.Error("Error playing sample",
			logger.String("uuid", asset.UUID),
			logger.ErrorField(err))
		e.failLocked()
		return err
	}

	e.stopVoiceLocked()
	e.current = asset
	e.duration = buf.Duration()
	return e.startLocked(buf, offset)
}

func (e *Engine) startLocked(buf *Buffer, offset float64) error {
	voice, err := e.out.CreateVoice(buf)
	if err != nil {
		logger.Error("Failed to create voice", logger.ErrorField(err))
		e.failLocked()
		return fmt.Errorf("%w: %v", ErrHardware, err)
	}

	loop := e.current.IsLoop() && e.repeat
	assetID := e.current.UUID
	voice.SetLoop(loop)
	voice.OnEnded(func() { e.handleEnded(voice, assetID) })

	if err := voice.Start(offset); err != nil {
		voice.Disconnect()
		logger.Error("Failed to start voice", logger.ErrorField(err))
		e.failLocked()
		return fmt.Errorf("%w: %v", ErrHardware, err)
	}

	e.voice = voice
	e.voiceAsset = assetID
	e.looping = loop
	e.startTime = e.out.Now() - offset
	e.pauseTime = offset
	e.currentTime = offset
	e.status = StatusPlaying
	logger.Debug("Playback started",
		logger.String("uuid", assetID),
		logger.Float64("offset", offset),
		logger.Bool("loop", loop))
	return nil
}

// handleEnded stops the transport when voice finished on its own, provided
// it is still the engine's voice for the current asset.
func (e *Engine) handleEnded(voice Voice, assetID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.voice != voice || e.voiceAsset != assetID {
		return
	}
	if e.current == nil || e.current.UUID != assetID {
		return
	}
	if e.status != StatusPlaying || e.looping {
		return
	}

	e.stopLocked()
	e.status = StatusStopped
	logger.Debug("Sample finished", logger.String("uuid", assetID))
}

// failLocked leaves the transport in a non-playing state after an error or
// a cancelled start.
func (e *Engine) failLocked() {
	e.stopVoiceLocked()
	switch {
	case e.current == nil:
		e.status = StatusIdle
	case e.pauseTime > 0:
		e.status = StatusPaused
	default:
		e.status = StatusStopped
	}
}

func (e *Engine) stopLocked() {
	e.stopVoiceLocked()
	e.pauseTime = 0
	e.currentTime = 0
}

func (e *Engine) stopVoiceLocked() {
	if e.voice == nil {
		return
	}
	e.voice.Stop()
	e.voice.Disconnect()
	e.voice = nil
	e.voiceAsset = ""
	e.looping = false
}

func (e *Engine) updateTimeLocked() {
	if e.status != StatusPlaying || e.voice == nil {
		return
	}
	elapsed := e.out.Now() - e.startTime
	if e.looping && e.duration > 0 {
		e.currentTime = math.Mod(elapsed, e.duration)
	} else {
		e.currentTime = math.Min(elapsed, e.duration)
	}
}

func clampVolume(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}
