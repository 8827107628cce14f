package audio

import (
	"context"
	"fmt"
	"testing"

	"SampleDeck/model"
)

func TestPrefetchSkipsCachedAsset(t *testing.T) {
	fetcher := newGatedFetcher()
	p := newTestPipeline(t, fetcher)
	pf := NewPrefetcher(p, 2)
	asset := testAsset("a")

	if _, err := p.Acquire(context.Background(), asset); err != nil {
		t.Fatal(err)
	}
	pf.Enqueue(asset)

	if pf.Len() != 0 {
		t.Errorf("Len = %d, want 0", pf.Len())
	}
	if got := fetcher.count(asset); got != 1 {
		t.Errorf("fetch count = %d, want 1", got)
	}
}

func TestPrefetchSkipsInFlightAsset(t *testing.T) {
	fetcher := newGatedFetcher()
	p := newTestPipeline(t, fetcher)
	pf := NewPrefetcher(p, 2)
	asset := testAsset("a")
	release := fetcher.hold(asset)

	call := p.AcquireAsync(asset)
	pf.Enqueue(asset)
	release()
	if _, err := call.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := fetcher.count(asset); got != 1 {
		t.Errorf("fetch count = %d, want 1", got)
	}
}

func TestPrefetchRespectsCeilingAndDrainsOnSettle(t *testing.T) {
	fetcher := newGatedFetcher()
	p := newTestPipeline(t, fetcher)
	pf := NewPrefetcher(p, 2)

	assets := make([]*model.SampleAsset, 5)
	releases := make([]func(), 5)
	for i := range assets {
		assets[i] = testAsset(fmt.Sprintf("a%d", i))
		releases[i] = fetcher.hold(assets[i])
		pf.Enqueue(assets[i])
	}
	defer func() {
		for _, r := range releases {
			r()
		}
	}()

	if got := p.LoadingCount(); got != 2 {
		t.Fatalf("LoadingCount = %d, want 2", got)
	}
	if pf.Len() != 3 {
		t.Fatalf("Len = %d, want 3", pf.Len())
	}
	if !p.InFlight("a0") || !p.InFlight("a1") {
		t.Fatal("queue should drain in insertion order")
	}

	releases[0]()
	eventually(t, func() bool { return p.Has("a0") && p.InFlight("a2") }, "next queued asset to dispatch")
	if got := p.LoadingCount(); got != 2 {
		t.Errorf("LoadingCount = %d, want 2", got)
	}
	if pf.Len() != 2 {
		t.Errorf("Len = %d, want 2", pf.Len())
	}
}

func TestPrefetchDequeue(t *testing.T) {
	fetcher := newGatedFetcher()
	p := newTestPipeline(t, fetcher)
	pf := NewPrefetcher(p, 1)

	first, second := testAsset("a"), testAsset("b")
	release := fetcher.hold(first)
	pf.Enqueue(first)
	pf.Enqueue(second)
	if !pf.Queued("b") {
		t.Fatal("b should wait in the queue")
	}

	pf.Dequeue(second)
	release()
	eventually(t, func() bool { return p.Has("a") }, "first prefetch")
	eventually(t, func() bool { return p.LoadingCount() == 0 }, "pipeline to settle")

	if fetcher.count(second) != 0 {
		t.Error("dequeued asset was fetched")
	}
}

func TestPrefetchRechecksCacheOnDequeue(t *testing.T) {
	fetcher := newGatedFetcher()
	p := newTestPipeline(t, fetcher)
	pf := NewPrefetcher(p, 1)

	first, second := testAsset("a"), testAsset("b")
	release := fetcher.hold(first)
	pf.Enqueue(first)
	pf.Enqueue(second)

	p.Cache().Put("b", &Buffer{duration: 1})
	release()

	eventually(t, func() bool { return pf.Len() == 0 && p.LoadingCount() == 0 }, "queue to drain")
	if fetcher.count(second) != 0 {
		t.Error("asset cached while queued was fetched again")
	}
}

func TestPrefetchFailureIsSwallowed(t *testing.T) {
	fetcher := newGatedFetcher()
	p := newTestPipeline(t, fetcher)
	pf := NewPrefetcher(p, 2)
	asset := testAsset("a")
	fetcher.failWith(asset, ErrTransport)

	pf.Enqueue(asset)

	eventually(t, func() bool { return fetcher.count(asset) == 1 && p.LoadingCount() == 0 }, "prefetch to fail")
	if p.Has("a") {
		t.Error("failed prefetch must not be cached")
	}
}
