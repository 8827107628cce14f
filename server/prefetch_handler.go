package server

import (
	"net/http"

	"SampleDeck/model"
)

type prefetchRequest struct {
	UUIDs []string `json:"uuids"`
}

// PrefetchHandler queues samples for background download and decode.
// Unknown uuids are reported back and skipped.
func (h *APIHandler) PrefetchHandler(w http.ResponseWriter, r *http.Request) {
	var req prefetchRequest
	if err := decodeBody(r, &req); err != nil || len(req.UUIDs) == 0 {
		writeError(w, http.StatusBadRequest, "uuids are required")
		return
	}

	var unknown []string
	for _, uuid := range req.UUIDs {
		asset, err := h.findAsset(r.Context(), uuid)
		if err != nil || asset == nil {
			unknown = append(unknown, uuid)
			continue
		}
		h.prefetcher.Enqueue(asset)
	}

	writeSuccess(w, http.StatusAccepted, map[string]interface{}{
		"queued":  h.prefetcher.Len(),
		"loading": h.pipeline.Loading(),
		"unknown": unknown,
	})
}

// CancelPrefetchHandler drops a sample from the prefetch queue.
func (h *APIHandler) CancelPrefetchHandler(w http.ResponseWriter, r *http.Request) {
	h.prefetcher.Dequeue(&model.SampleAsset{UUID: muxVar(r, "uuid")})
	writeSuccess(w, http.StatusOK, map[string]interface{}{"queued": h.prefetcher.Len()})
}

// CacheHandler reports the decoded buffer cache.
func (h *APIHandler) CacheHandler(w http.ResponseWriter, r *http.Request) {
	cache := h.pipeline.Cache()
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"capacity": cache.Capacity(),
		"entries":  cache.Keys(),
		"loading":  h.pipeline.Loading(),
		"queued":   h.prefetcher.Len(),
	})
}

// FreeBufferHandler evicts one decoded buffer.
func (h *APIHandler) FreeBufferHandler(w http.ResponseWriter, r *http.Request) {
	h.pipeline.Free(muxVar(r, "uuid"))
	writeSuccess(w, http.StatusOK, map[string]interface{}{"entries": h.pipeline.Cache().Len()})
}
