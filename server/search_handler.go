package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"SampleDeck/core/search"
	"SampleDeck/core/tabs"
	"SampleDeck/logger"
)

type searchResult struct {
	Outcome search.Outcome `json:"outcome"`
	Tab     tabView        `json:"tab"`
}

// GetSearchHandler returns the active tab, or the tab named by ?tab=.
func (h *APIHandler) GetSearchHandler(w http.ResponseWriter, r *http.Request) {
	tab, err := h.store.Tabs().Snapshot(r.URL.Query().Get("tab"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, newTabView(tab))
}

// UpdateQueryHandler merges the JSON body into the active tab's query and
// fetches. Fields absent from the body keep their values; null clears an
// optional filter.
func (h *APIHandler) UpdateQueryHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var decodeErr error
	h.store.UpdateQuery(func(q *tabs.QueryState) {
		next := q.Clone()
		if decodeErr = json.Unmarshal(body, &next); decodeErr == nil {
			*q = next
		}
	})
	if decodeErr != nil {
		writeError(w, http.StatusBadRequest, "invalid query: "+decodeErr.Error())
		return
	}

	h.fetch(w, r, h.store.Fetch)
}

// FetchHandler re-runs the active tab's search.
func (h *APIHandler) FetchHandler(w http.ResponseWriter, r *http.Request) {
	h.fetch(w, r, h.store.Fetch)
}

// LoadMoreHandler requests the next page of the active tab.
func (h *APIHandler) LoadMoreHandler(w http.ResponseWriter, r *http.Request) {
	h.fetch(w, r, h.store.LoadMore)
}

type toggleTagRequest struct {
	Label string `json:"label"`
}

// ToggleTagHandler selects or deselects a tag by label and fetches.
func (h *APIHandler) ToggleTagHandler(w http.ResponseWriter, r *http.Request) {
	var req toggleTagRequest
	if err := decodeBody(r, &req); err != nil || req.Label == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}
	h.fetch(w, r, func(ctx context.Context) (search.Outcome, error) {
		return h.store.ToggleTag(ctx, req.Label)
	})
}

// SelectedTagsHandler lists the normalised labels selected in the active tab.
func (h *APIHandler) SelectedTagsHandler(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.store.SelectedLabels())
}

// GenresHandler returns the genre catalog, loading it on first use.
func (h *APIHandler) GenresHandler(w http.ResponseWriter, r *http.Request) {
	genres := h.store.Genres()
	if len(genres) == 0 || r.URL.Query().Get("refresh") == "true" {
		var err error
		if genres, err = h.store.FetchAllGenres(r.Context()); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	writeSuccess(w, http.StatusOK, genres)
}

// fetch runs a store request and answers with its outcome and the active tab.
func (h *APIHandler) fetch(w http.ResponseWriter, r *http.Request, run func(ctx context.Context) (search.Outcome, error)) {
	outcome, err := run(r.Context())
	tab, snapErr := h.store.Tabs().Snapshot("")
	if snapErr != nil {
		h.fail(w, r, snapErr)
		return
	}
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		logger.Warn("Search request failed", logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, searchResult{Outcome: outcome, Tab: newTabView(tab)})
}
