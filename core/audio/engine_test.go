package audio

import (
	"context"
	"errors"
	"testing"
)

func newTestEngine(t *testing.T, fetcher *gatedFetcher) (*Engine, *fakeOutput, *Pipeline) {
	t.Helper()
	out := &fakeOutput{}
	p := newTestPipeline(t, fetcher)
	return NewEngine(out, p, DefaultVolume, true), out, p
}

func TestPlayStartsVoice(t *testing.T) {
	e, out, _ := newTestEngine(t, newGatedFetcher())
	asset := testAsset("a")

	if err := e.Play(context.Background(), asset, 0); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	voices := out.voiceList()
	if len(voices) != 1 {
		t.Fatalf("voices = %d, want 1", len(voices))
	}
	if v := voices[0].snapshot(); !v.started || v.offset != 0 {
		t.Errorf("voice = %+v", v)
	}
	st := e.State()
	if st.Status != StatusPlaying || st.Paused {
		t.Errorf("status = %v paused = %v", st.Status, st.Paused)
	}
	if st.Asset != asset || st.Duration != 2 {
		t.Errorf("asset = %v duration = %v", st.Asset, st.Duration)
	}
}

func TestPlayResumesSuspendedOutput(t *testing.T) {
	e, out, _ := newTestEngine(t, newGatedFetcher())
	out.suspended = true

	if err := e.Play(context.Background(), testAsset("a"), 0); err != nil {
		t.Fatal(err)
	}
	if out.resumes != 1 || out.Suspended() {
		t.Errorf("resumes = %d suspended = %v", out.resumes, out.Suspended())
	}
}

func TestSelectDuringLoadDiscardsStalePlay(t *testing.T) {
	fetcher := newGatedFetcher()
	e, out, p := newTestEngine(t, fetcher)
	a, b := testAsset("a"), testAsset("b")
	release := fetcher.hold(a)

	done := make(chan error, 1)
	go func() { done <- e.Play(context.Background(), a, 0) }()
	eventually(t, func() bool { return p.InFlight("a") }, "play of a to start loading")

	e.Select(b)
	release()
	if err := <-done; err != nil {
		t.Fatalf("stale play returned %v", err)
	}

	if n := len(out.voiceList()); n != 0 {
		t.Fatalf("stale play created %d voices", n)
	}
	st := e.State()
	if st.Asset != b || st.Status != StatusStopped {
		t.Fatalf("state = %+v, want b stopped", st)
	}

	if err := e.Play(context.Background(), b, 0); err != nil {
		t.Fatal(err)
	}
	bufB, _ := p.Cache().Get("b")
	voices := out.voiceList()
	if len(voices) != 1 || voices[0].snapshot().buf != bufB {
		t.Fatalf("expected exactly one voice playing b")
	}
}

func TestLaterPlayWins(t *testing.T) {
	fetcher := newGatedFetcher()
	e, out, p := newTestEngine(t, fetcher)
	a, b := testAsset("a"), testAsset("b")
	release := fetcher.hold(a)

	done := make(chan error, 1)
	go func() { done <- e.Play(context.Background(), a, 0) }()
	eventually(t, func() bool { return p.InFlight("a") }, "play of a to start loading")

	if err := e.Play(context.Background(), b, 0); err != nil {
		t.Fatal(err)
	}
	release()
	<-done

	if n := len(out.voiceList()); n != 1 {
		t.Fatalf("voices = %d, want 1", n)
	}
	if st := e.State(); st.Asset != b || st.Status != StatusPlaying {
		t.Fatalf("state = %+v, want b playing", st)
	}
}

func TestStopCancelsPendingPlay(t *testing.T) {
	fetcher := newGatedFetcher()
	e, out, p := newTestEngine(t, fetcher)
	a := testAsset("a")
	release := fetcher.hold(a)

	done := make(chan error, 1)
	go func() { done <- e.Play(context.Background(), a, 0) }()
	eventually(t, func() bool { return p.InFlight("a") }, "play to start loading")

	e.Stop()
	release()
	<-done

	if n := len(out.voiceList()); n != 0 {
		t.Fatalf("voices = %d, want 0", n)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	e, out, _ := newTestEngine(t, newGatedFetcher())
	if err := e.Play(context.Background(), testAsset("a"), 0); err != nil {
		t.Fatal(err)
	}

	e.Stop()
	once := e.State()
	e.Stop()
	twice := e.State()

	if once != twice {
		t.Errorf("state after second stop = %+v, want %+v", twice, once)
	}
	if once.Status != StatusStopped || once.CurrentTime != 0 {
		t.Errorf("state = %+v", once)
	}
	if v := out.voiceList()[0].snapshot(); !v.stopped || !v.disconnected {
		t.Errorf("voice not released: %+v", v)
	}
}

func TestPauseAndResume(t *testing.T) {
	e, out, _ := newTestEngine(t, newGatedFetcher())
	if err := e.Play(context.Background(), testAsset("a"), 0); err != nil {
		t.Fatal(err)
	}

	out.setNow(0.5)
	e.Pause()
	st := e.State()
	if st.Status != StatusPaused || st.CurrentTime != 0.5 {
		t.Fatalf("state after pause = %+v", st)
	}
	if v := out.voiceList()[0].snapshot(); !v.stopped || !v.disconnected {
		t.Fatal("pause must release the voice")
	}

	if err := e.Resume(context.Background()); err != nil {
		t.Fatal(err)
	}
	voices := out.voiceList()
	if len(voices) != 2 || voices[1].snapshot().offset != 0.5 {
		t.Fatalf("resume should start a new voice at 0.5")
	}
	if out.peakConnected() != 1 {
		t.Errorf("peak connected voices = %d, want 1", out.peakConnected())
	}
}

func TestPauseIsNoopWhenNotPlaying(t *testing.T) {
	e, _, _ := newTestEngine(t, newGatedFetcher())
	e.Pause()
	if st := e.State(); st.Status != StatusIdle {
		t.Errorf("status = %v, want idle", st.Status)
	}

	e.Select(testAsset("a"))
	e.Pause()
	if st := e.State(); st.Status != StatusStopped {
		t.Errorf("status = %v, want stopped", st.Status)
	}
}

func TestSelectAdoptsMetadataDuration(t *testing.T) {
	e, out, _ := newTestEngine(t, newGatedFetcher())
	asset := testAsset("a")
	asset.Duration = 3500

	e.Select(asset)
	st := e.State()
	if st.Asset != asset || st.Duration != 3.5 {
		t.Errorf("state = %+v", st)
	}
	if len(out.voiceList()) != 0 {
		t.Error("select must not start playback")
	}
}

func TestSeekWhilePausedOnlyMovesPosition(t *testing.T) {
	e, out, _ := newTestEngine(t, newGatedFetcher())
	if err := e.Play(context.Background(), testAsset("a"), 0); err != nil {
		t.Fatal(err)
	}
	e.Pause()

	if err := e.Seek(context.Background(), 0.25); err != nil {
		t.Fatal(err)
	}
	if n := len(out.voiceList()); n != 1 {
		t.Fatalf("seek while paused created a voice")
	}
	if st := e.State(); st.CurrentTime != 0.5 || st.Status != StatusPaused {
		t.Fatalf("state = %+v", st)
	}

	if err := e.Resume(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v := out.voiceList()[1].snapshot(); v.offset != 0.5 {
		t.Errorf("resume offset = %v, want 0.5", v.offset)
	}
}

func TestSeekDuringPendingPlayAppliesToRequestedAsset(t *testing.T) {
	fetcher := newGatedFetcher()
	e, out, p := newTestEngine(t, fetcher)
	a, b := testAsset("a"), testAsset("b")

	if err := e.Play(context.Background(), a, 0); err != nil {
		t.Fatal(err)
	}
	e.Pause()

	release := fetcher.hold(b)
	played := make(chan error, 1)
	go func() { played <- e.Play(context.Background(), b, 0) }()
	eventually(t, func() bool { return p.InFlight("b") }, "play of b to start loading")

	seeked := make(chan error, 1)
	go func() { seeked <- e.Seek(context.Background(), 0.5) }()
	eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.seq >= 4
	}, "seek to take over the pending start")

	release()
	if err := <-played; err != nil {
		t.Fatal(err)
	}
	if err := <-seeked; err != nil {
		t.Fatal(err)
	}

	st := e.State()
	if st.Asset != b || st.Status != StatusPlaying {
		t.Fatalf("state = %+v, want b playing", st)
	}
	voices := out.voiceList()
	if len(voices) != 2 {
		t.Fatalf("voices = %d, want 2", len(voices))
	}
	bufB, _ := p.Cache().Get("b")
	if v := voices[1].snapshot(); v.buf != bufB || v.offset != 1 {
		t.Errorf("second voice buf = %p offset = %v, want b at 1", v.buf, v.offset)
	}
	if !voices[0].snapshot().disconnected {
		t.Error("voice of a restarted")
	}
}

func TestSeekWhilePlayingRestartsVoice(t *testing.T) {
	e, out, _ := newTestEngine(t, newGatedFetcher())
	if err := e.Play(context.Background(), testAsset("a"), 0); err != nil {
		t.Fatal(err)
	}

	if err := e.Seek(context.Background(), 0.5); err != nil {
		t.Fatal(err)
	}

	voices := out.voiceList()
	if len(voices) != 2 {
		t.Fatalf("voices = %d, want 2", len(voices))
	}
	if !voices[0].snapshot().disconnected {
		t.Error("old voice still connected")
	}
	if voices[1].snapshot().offset != 1 {
		t.Errorf("offset = %v, want 1", voices[1].snapshot().offset)
	}
	if out.peakConnected() != 1 {
		t.Errorf("peak connected voices = %d, want 1", out.peakConnected())
	}
}

func TestLoopFlag(t *testing.T) {
	tests := []struct {
		name   string
		loop   bool
		repeat bool
		want   bool
	}{
		{"loop with repeat", true, true, true},
		{"loop without repeat", true, false, false},
		{"one-shot with repeat", false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, out, _ := newTestEngine(t, newGatedFetcher())
			e.SetRepeat(tt.repeat)
			asset := testAsset("a")
			if tt.loop {
				asset = testLoop("a")
			}

			if err := e.Play(context.Background(), asset, 0); err != nil {
				t.Fatal(err)
			}
			if got := out.voiceList()[0].snapshot().loop; got != tt.want {
				t.Errorf("loop = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNaturalEndStopsTransport(t *testing.T) {
	e, out, _ := newTestEngine(t, newGatedFetcher())
	if err := e.Play(context.Background(), testAsset("a"), 0); err != nil {
		t.Fatal(err)
	}
	out.setNow(2)
	e.UpdateTime()

	out.voiceList()[0].end()

	st := e.State()
	if st.Status != StatusStopped || st.CurrentTime != 0 {
		t.Errorf("state = %+v, want stopped at 0", st)
	}
}

func TestEndOfReplacedVoiceIsIgnored(t *testing.T) {
	e, out, _ := newTestEngine(t, newGatedFetcher())
	if err := e.Play(context.Background(), testAsset("a"), 0); err != nil {
		t.Fatal(err)
	}
	if err := e.Play(context.Background(), testAsset("b"), 0); err != nil {
		t.Fatal(err)
	}

	out.voiceList()[0].end()

	if st := e.State(); st.Status != StatusPlaying || st.Asset.UUID != "b" {
		t.Errorf("state = %+v, want b playing", st)
	}
}

func TestEndOfLoopingVoiceIsIgnored(t *testing.T) {
	e, out, _ := newTestEngine(t, newGatedFetcher())
	if err := e.Play(context.Background(), testLoop("a"), 0); err != nil {
		t.Fatal(err)
	}

	out.voiceList()[0].end()

	if st := e.State(); st.Status != StatusPlaying {
		t.Errorf("status = %v, want playing", st.Status)
	}
}

func TestUpdateTimeClampsAndWraps(t *testing.T) {
	t.Run("one-shot clamps", func(t *testing.T) {
		e, out, _ := newTestEngine(t, newGatedFetcher())
		if err := e.Play(context.Background(), testAsset("a"), 0); err != nil {
			t.Fatal(err)
		}
		out.setNow(5)
		e.UpdateTime()
		if got := e.State().CurrentTime; got != 2 {
			t.Errorf("CurrentTime = %v, want 2", got)
		}
	})

	t.Run("loop wraps", func(t *testing.T) {
		e, out, _ := newTestEngine(t, newGatedFetcher())
		if err := e.Play(context.Background(), testLoop("a"), 0); err != nil {
			t.Fatal(err)
		}
		out.setNow(5)
		e.UpdateTime()
		st := e.State()
		if st.CurrentTime != 1 {
			t.Errorf("CurrentTime = %v, want 1", st.CurrentTime)
		}
		if st.Progress() != 0.5 {
			t.Errorf("Progress = %v, want 0.5", st.Progress())
		}
	})
}

func TestAcquireFailureLeavesTransportStopped(t *testing.T) {
	fetcher := newGatedFetcher()
	e, out, _ := newTestEngine(t, fetcher)
	asset := testAsset("a")
	fetcher.failWith(asset, ErrTransport)

	err := e.Play(context.Background(), asset, 0)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	if len(out.voiceList()) != 0 {
		t.Error("failed play created a voice")
	}
	if st := e.State(); st.Status == StatusPlaying || st.Status == StatusLoading {
		t.Errorf("status = %v, want a non-playing state", st.Status)
	}
}

func TestVoiceCreationFailure(t *testing.T) {
	e, out, _ := newTestEngine(t, newGatedFetcher())
	out.createErr = errFakeHardware

	err := e.Play(context.Background(), testAsset("a"), 0)
	if !errors.Is(err, ErrHardware) {
		t.Fatalf("err = %v, want ErrHardware", err)
	}
	if st := e.State(); st.Status != StatusStopped {
		t.Errorf("status = %v, want stopped", st.Status)
	}
}

func TestToggleMuteAndVolume(t *testing.T) {
	e, out, _ := newTestEngine(t, newGatedFetcher())

	e.ToggleMute()
	if e.State().Volume != 0 || out.volume != 0 {
		t.Fatalf("volume after mute = %v / %v", e.State().Volume, out.volume)
	}
	e.ToggleMute()
	if e.State().Volume != DefaultVolume {
		t.Fatalf("volume after unmute = %v", e.State().Volume)
	}

	e.SetVolume(1.7)
	if e.State().Volume != 1 {
		t.Errorf("volume = %v, want clamp to 1", e.State().Volume)
	}
}

func TestTogglePlay(t *testing.T) {
	e, out, _ := newTestEngine(t, newGatedFetcher())
	e.Select(testAsset("a"))

	if err := e.TogglePlay(context.Background()); err != nil {
		t.Fatal(err)
	}
	if e.State().Status != StatusPlaying {
		t.Fatalf("status = %v, want playing", e.State().Status)
	}

	if err := e.TogglePlay(context.Background()); err != nil {
		t.Fatal(err)
	}
	if e.State().Status != StatusPaused {
		t.Fatalf("status = %v, want paused", e.State().Status)
	}
	if len(out.voiceList()) != 1 {
		t.Errorf("voices = %d, want 1", len(out.voiceList()))
	}
}

func TestTogglePlayCancelsPendingStart(t *testing.T) {
	fetcher := newGatedFetcher()
	e, out, p := newTestEngine(t, fetcher)
	a := testAsset("a")
	e.Select(a)

	release := fetcher.hold(a)
	done := make(chan error, 1)
	go func() { done <- e.Play(context.Background(), a, 0) }()
	eventually(t, func() bool { return p.InFlight("a") }, "play to start loading")

	if err := e.TogglePlay(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st := e.State().Status; st != StatusStopped {
		t.Fatalf("status = %v, want stopped", st)
	}

	release()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if n := len(out.voiceList()); n != 0 {
		t.Fatalf("voices = %d, want 0", n)
	}
	if st := e.State().Status; st != StatusStopped {
		t.Errorf("status after load = %v, want stopped", st)
	}
}

func TestPauseCancelsPendingStartOfOtherAsset(t *testing.T) {
	fetcher := newGatedFetcher()
	e, out, p := newTestEngine(t, fetcher)
	a, b := testAsset("a"), testAsset("b")

	if err := e.Play(context.Background(), a, 0); err != nil {
		t.Fatal(err)
	}
	release := fetcher.hold(b)
	done := make(chan error, 1)
	go func() { done <- e.Play(context.Background(), b, 0) }()
	eventually(t, func() bool { return p.InFlight("b") }, "play of b to start loading")

	e.Pause()
	release()
	<-done

	if n := len(out.voiceList()); n != 1 {
		t.Fatalf("voices = %d, want 1", n)
	}
	if st := e.State(); st.Asset != a || st.Status != StatusPaused {
		t.Fatalf("state = %+v, want a paused", st)
	}
}
