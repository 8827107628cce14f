package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SampleDeck/model"
)

func testAsset(id string) *model.SampleAsset {
	return &model.SampleAsset{
		UUID:              id,
		Name:              id + ".wav",
		Duration:          2000,
		AssetCategorySlug: "oneshot",
		Files:             []model.AssetFile{{UUID: "f-" + id, URL: "https://cdn.test/" + id}},
	}
}

func testLoop(id string) *model.SampleAsset {
	a := testAsset(id)
	a.AssetCategorySlug = model.AssetCategoryLoop
	return a
}

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// gatedFetcher serves url bytes, optionally blocking per url until released.
type gatedFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	gates map[string]chan struct{}
	fail  map[string]error
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		calls: make(map[string]int),
		gates: make(map[string]chan struct{}),
		fail:  make(map[string]error),
	}
}

func (f *gatedFetcher) hold(asset *model.SampleAsset) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[asset.PrimaryFile().URL] = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *gatedFetcher) failWith(asset *model.SampleAsset, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, asset.PrimaryFile().URL)
		return
	}
	f.fail[asset.PrimaryFile().URL] = err
}

func (f *gatedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	gate := f.gates[url]
	err := f.fail[url]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte(url), nil
}

func (f *gatedFetcher) count(asset *model.SampleAsset) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[asset.PrimaryFile().URL]
}

func (f *gatedFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type decoderFunc func(data []byte) (*Buffer, error)

func (f decoderFunc) Decode(data []byte) (*Buffer, error) { return f(data) }

var fixedDecoder = decoderFunc(func([]byte) (*Buffer, error) {
	return &Buffer{duration: 2}, nil
})

func newTestPipeline(t *testing.T, fetcher Fetcher, opts ...PipelineOption) *Pipeline {
	t.Helper()
	cache, err := NewBufferCache(DefaultCacheCapacity)
	if err != nil {
		t.Fatalf("NewBufferCache: %v", err)
	}
	return NewPipeline(cache, fetcher, Passthrough, fixedDecoder, opts...)
}

// memStore is an in-memory RawStore.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, uuid string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	return s.data[uuid], nil
}

func (s *memStore) Put(_ context.Context, uuid string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[uuid] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) has(uuid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[uuid]
	return ok
}

var errFakeHardware = errors.New("device unavailable")

// fakeOutput records voices and tracks how many are connected at once.
type fakeOutput struct {
	mu           sync.Mutex
	now          float64
	suspended    bool
	resumes      int
	volume       float64
	createErr    error
	startErr     error
	voices       []*fakeVoice
	maxConnected int
}

func (o *fakeOutput) Resume(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resumes++
	o.suspended = false
	return nil
}

func (o *fakeOutput) Suspended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.suspended
}

func (o *fakeOutput) CreateVoice(buf *Buffer) (Voice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.createErr != nil {
		return nil, o.createErr
	}
	v := &fakeVoice{out: o, buf: buf}
	o.voices = append(o.voices, v)
	return v, nil
}

func (o *fakeOutput) Now() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

func (o *fakeOutput) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = v
}

func (o *fakeOutput) setNow(now float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now = now
}

func (o *fakeOutput) voiceList() []*fakeVoice {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakeVoice(nil), o.voices...)
}

func (o *fakeOutput) peakConnected() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.maxConnected
}

type fakeVoice struct {
	out          *fakeOutput
	buf          *Buffer
	loop         bool
	onEnded      func()
	started      bool
	offset       float64
	stopped      bool
	disconnected bool
}

func (v *fakeVoice) SetLoop(loop bool) {
	v.out.mu.Lock()
	defer v.out.mu.Unlock()
	v.loop = loop
}

func (v *fakeVoice) OnEnded(fn func()) {
	v.out.mu.Lock()
	defer v.out.mu.Unlock()
	v.onEnded = fn
}

func (v *fakeVoice) Start(offset float64) error {
	v.out.mu.Lock()
	defer v.out.mu.Unlock()
	if v.out.startErr != nil {
		return v.out.startErr
	}
	v.started = true
	v.offset = offset

	connected := 0
	for _, other := range v.out.voices {
		if other.started && !other.disconnected {
			connected++
		}
	}
	v.out.maxConnected = max(v.out.maxConnected, connected)
	return nil
}

func (v *fakeVoice) Stop() {
	v.out.mu.Lock()
	defer v.out.mu.Unlock()
	v.stopped = true
}

func (v *fakeVoice) Disconnect() {
	v.out.mu.Lock()
	defer v.out.mu.Unlock()
	v.disconnected = true
}

// end simulates the voice reaching the end of its buffer.
func (v *fakeVoice) end() {
	v.out.mu.Lock()
	fn := v.onEnded
	v.out.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (v *fakeVoice) snapshot() fakeVoice {
	v.out.mu.Lock()
	defer v.out.mu.Unlock()
	return fakeVoice{
		buf:          v.buf,
		loop:         v.loop,
		started:      v.started,
		offset:       v.offset,
		stopped:      v.stopped,
		disconnected: v.disconnected,
	}
}
