package audio

import (
	"context"
	"slices"
	"sync"

	"SampleDeck/logger"
	"SampleDeck/model"
)

// DefaultPrefetchConcurrency caps outstanding acquisitions while prefetching.
const DefaultPrefetchConcurrency = 10

// Prefetcher warms the cache in the background. It only dispatches while
// the pipeline has fewer than ceiling acquisitions outstanding, and drains
// again whenever one of them settles.
type Prefetcher struct {
	pipeline *Pipeline
	ceiling  int

	mu     sync.Mutex
	queued map[string]*model.SampleAsset
	order  []string
}

// NewPrefetcher creates a prefetcher and registers it as the pipeline's settle hook.
func NewPrefetcher(pipeline *Pipeline, ceiling int) *Prefetcher {
	if ceiling <= 0 {
		ceiling = DefaultPrefetchConcurrency
	}
	pf := &Prefetcher{
		pipeline: pipeline,
		ceiling:  ceiling,
		queued:   make(map[string]*model.SampleAsset),
	}
	pipeline.SetSettleHook(pf.Drain)
	return pf
}

// Enqueue queues asset unless it is cached or already being acquired, then drains.
func (pf *Prefetcher) Enqueue(asset *model.SampleAsset) {
	if pf.pipeline.Has(asset.UUID) || pf.pipeline.InFlight(asset.UUID) {
		return
	}

	pf.mu.Lock()
	if _, ok := pf.queued[asset.UUID]; !ok {
		pf.queued[asset.UUID] = asset
		pf.order = append(pf.order, asset.UUID)
	}
	pf.mu.Unlock()

	pf.Drain()
}

// Dequeue drops asset from the queue. Work already dispatched is not affected.
func (pf *Prefetcher) Dequeue(asset *model.SampleAsset) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if _, ok := pf.queued[asset.UUID]; !ok {
		return
	}
	delete(pf.queued, asset.UUID)
	if i := slices.Index(pf.order, asset.UUID); i >= 0 {
		pf.order = slices.Delete(pf.order, i, i+1)
	}
}

// Drain dispatches queued assets in insertion order while capacity allows.
func (pf *Prefetcher) Drain() {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	for len(pf.order) > 0 && pf.pipeline.LoadingCount() < pf.ceiling {
		uuid := pf.order[0]
		pf.order = pf.order[1:]
		asset := pf.queued[uuid]
		delete(pf.queued, uuid)

		if pf.pipeline.Has(uuid) || pf.pipeline.InFlight(uuid) {
			continue
		}

		logger.Debug("Dispatching prefetch",
			logger.String("uuid", uuid),
			logger.String("name", asset.Name))
		call := pf.pipeline.AcquireAsync(asset)
		go pf.watch(asset, call)
	}
}

func (pf *Prefetcher) watch(asset *model.SampleAsset, call *Call) {
	if _, err := call.Wait(context.Background()); err != nil {
		logger.Warn("Prefetch failed",
			logger.String("uuid", asset.UUID),
			logger.ErrorField(err))
	}
}

// Len is the number of queued assets.
func (pf *Prefetcher) Len() int {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return len(pf.order)
}

// Queued reports whether uuid is waiting in the queue.
func (pf *Prefetcher) Queued(uuid string) bool {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	_, ok := pf.queued[uuid]
	return ok
}
