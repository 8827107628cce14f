package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"SampleDeck/logger"
	"SampleDeck/model"
)

// RawStore is a tier holding the raw (still scrambled) bytes of samples.
// Get returns nil, nil on a miss.
type RawStore interface {
	Get(ctx context.Context, uuid string) ([]byte, error)
	Put(ctx context.Context, uuid string, data []byte) error
}

// Call is a pending or finished acquisition. Every caller that joins the same
// Call observes the same buffer or the same error.
type Call struct {
	done chan struct{}
	buf  *Buffer
	err  error
}

func resolvedCall(buf *Buffer) *Call {
	c := &Call{done: make(chan struct{}), buf: buf}
	close(c.done)
	return c
}

// Done is closed once the result is available.
func (c *Call) Done() <-chan struct{} { return c.done }

// Wait blocks until the call finishes or ctx is done. Giving up does not
// cancel the shared work.
func (c *Call) Wait(ctx context.Context) (*Buffer, error) {
	select {
	case <-c.done:
		return c.buf, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pipeline downloads, descrambles and decodes samples, keeping at most one
// operation per uuid in flight and the results in a BufferCache.
type Pipeline struct {
	cache       *BufferCache
	fetcher     Fetcher
	descrambler Descrambler
	decoder     Decoder
	tiers       []RawStore
	base        context.Context

	mu       sync.Mutex
	inflight map[string]*Call
	onSettle func()
}

// PipelineOption configures optional pipeline collaborators.
type PipelineOption func(*Pipeline)

// WithRawStores adds raw byte tiers consulted, in order, before the network.
func WithRawStores(stores ...RawStore) PipelineOption {
	return func(p *Pipeline) {
		for _, s := range stores {
			if s != nil {
				p.tiers = append(p.tiers, s)
			}
		}
	}
}

// WithBaseContext sets the context background work runs under.
func WithBaseContext(ctx context.Context) PipelineOption {
	return func(p *Pipeline) { p.base = ctx }
}

func NewPipeline(cache *BufferCache, fetcher Fetcher, descrambler Descrambler, decoder Decoder, opts ...PipelineOption) *Pipeline {
	if descrambler == nil {
		descrambler = Passthrough
	}
	p := &Pipeline{
		cache:       cache,
		fetcher:     fetcher,
		descrambler: descrambler,
		decoder:     decoder,
		base:        context.Background(),
		inflight:    make(map[string]*Call),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetSettleHook registers fn to run after every operation finishes, whether
// it succeeded or not. fn is called without the pipeline lock held.
func (p *Pipeline) SetSettleHook(fn func()) {
	p.mu.Lock()
	p.onSettle = fn
	p.mu.Unlock()
}

// Acquire returns the decoded buffer for asset, joining any operation
// already in flight for it.
func (p *Pipeline) Acquire(ctx context.Context, asset *model.SampleAsset) (*Buffer, error) {
	return p.AcquireAsync(asset).Wait(ctx)
}

// AcquireAsync starts or joins the acquisition of asset and returns without blocking.
func (p *Pipeline) AcquireAsync(asset *model.SampleAsset) *Call {
	p.mu.Lock()
	if buf, ok := p.cache.Get(asset.UUID); ok {
		p.mu.Unlock()
		return resolvedCall(buf)
	}
	if call, ok := p.inflight[asset.UUID]; ok {
		p.mu.Unlock()
		return call
	}
	call := &Call{done: make(chan struct{})}
	p.inflight[asset.UUID] = call
	p.mu.Unlock()

	go p.run(asset, call)
	return call
}

func (p *Pipeline) run(asset *model.SampleAsset, call *Call) {
	var buf *Buffer
	err := fmt.Errorf("%w: acquisition aborted", ErrDecode)

	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("%w: %s: panic: %v", ErrDecode, asset.UUID, r)
			logger.Error("Sample acquisition panicked",
				logger.String("uuid", asset.UUID),
				logger.Any("panic", r))
		}

		p.mu.Lock()
		if err == nil {
			p.cache.Put(asset.UUID, buf)
		}
		delete(p.inflight, asset.UUID)
		hook := p.onSettle
		p.mu.Unlock()

		call.buf, call.err = buf, err
		close(call.done)

		if hook != nil {
			hook()
		}
	}()

	buf, err = p.load(asset)
	if err != nil {
		logger.Error("Failed to acquire sample",
			logger.String("uuid", asset.UUID),
			logger.String("name", asset.Name),
			logger.ErrorField(err))
		return
	}
	logger.Debug("Sample ready",
		logger.String("uuid", asset.UUID),
		logger.Float64("duration", buf.Duration()))
}

func (p *Pipeline) load(asset *model.SampleAsset) (*Buffer, error) {
	raw, err := p.raw(asset)
	if err != nil {
		return nil, err
	}

	data, err := p.descrambler.Descramble(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDescramble, asset.UUID, err)
	}

	logger.Debug("Decoding sample", logger.String("uuid", asset.UUID))
	buf, err := p.decoder.Decode(bytes.Clone(data))
	if err != nil {
		if !errors.Is(err, ErrDecode) {
			err = fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return nil, fmt.Errorf("decode %s: %w", asset.UUID, err)
	}
	return buf, nil
}

// raw reads the scrambled bytes from the first tier holding them, falling
// back to the network, and writes them back to every tier that missed.
func (p *Pipeline) raw(asset *model.SampleAsset) ([]byte, error) {
	var missed []RawStore
	for _, tier := range p.tiers {
		data, err := tier.Get(p.base, asset.UUID)
		if err != nil {
			logger.Warn("Raw sample tier read failed",
				logger.String("uuid", asset.UUID),
				logger.ErrorField(err))
		}
		if data != nil {
			p.writeBack(missed, asset.UUID, data)
			return data, nil
		}
		missed = append(missed, tier)
	}

	file := asset.PrimaryFile()
	if file == nil || file.URL == "" {
		return nil, fmt.Errorf("%w: %s has no file url", ErrTransport, asset.UUID)
	}

	logger.Debug("Fetching sample",
		logger.String("uuid", asset.UUID),
		logger.String("name", asset.Name))
	data, err := p.fetcher.Fetch(p.base, file.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", asset.UUID, err)
	}

	p.writeBack(missed, asset.UUID, data)
	return data, nil
}

func (p *Pipeline) writeBack(tiers []RawStore, uuid string, data []byte) {
	for _, tier := range tiers {
		if err := tier.Put(p.base, uuid, data); err != nil {
			logger.Warn("Raw sample tier write failed",
				logger.String("uuid", uuid),
				logger.ErrorField(err))
		}
	}
}

// Has reports whether uuid is decoded and cached.
func (p *Pipeline) Has(uuid string) bool {
	return p.cache.Has(uuid)
}

// InFlight reports whether an acquisition of uuid is outstanding. An
// in-flight uuid is also a loading one.
func (p *Pipeline) InFlight(uuid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[uuid]
	return ok
}

// LoadingCount is the number of outstanding acquisitions, foreground and background.
func (p *Pipeline) LoadingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

// Loading lists the uuids currently being acquired.
func (p *Pipeline) Loading() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.inflight))
	for k := range p.inflight {
		keys = append(keys, k)
	}
	return keys
}

// Free drops the decoded buffer for uuid. An acquisition in flight is not affected.
func (p *Pipeline) Free(uuid string) {
	p.cache.Delete(uuid)
}

// Cache exposes the underlying buffer cache.
func (p *Pipeline) Cache() *BufferCache { return p.cache }
