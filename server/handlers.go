package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"SampleDeck/core/audio"
	"SampleDeck/core/search"
	"SampleDeck/core/tabs"
	"SampleDeck/logger"
	"SampleDeck/model"
	"SampleDeck/repository"
)

const maxBodyBytes = 1 << 20

// APIHandler serves the search, tab, player and prefetch endpoints.
type APIHandler struct {
	store      *search.Store
	engine     *audio.Engine
	pipeline   *audio.Pipeline
	prefetcher *audio.Prefetcher
	samples    repository.SampleRepository // optional catalog
	jwtSecret  []byte
}

// Deps are the services an APIHandler works on. Samples and JWTSecret may be empty.
type Deps struct {
	Store      *search.Store
	Engine     *audio.Engine
	Pipeline   *audio.Pipeline
	Prefetcher *audio.Prefetcher
	Samples    repository.SampleRepository
	JWTSecret  string
}

func NewAPIHandler(deps Deps) *APIHandler {
	return &APIHandler{
		store:      deps.Store,
		engine:     deps.Engine,
		pipeline:   deps.Pipeline,
		prefetcher: deps.Prefetcher,
		samples:    deps.Samples,
		jwtSecret:  []byte(deps.JWTSecret),
	}
}

// tabView is a tab as returned by the API.
type tabView struct {
	tabs.Tab
	Title string `json:"title"`
	Error string `json:"error,omitempty"`
}

func newTabView(tab tabs.Tab) tabView {
	v := tabView{Tab: tab, Title: tab.Title()}
	if tab.Loading.FetchError != nil {
		v.Error = tab.Loading.FetchError.Error()
	}
	return v
}

func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tabs.ErrTabNotFound), errors.Is(err, search.ErrUnknownTag):
		return http.StatusNotFound
	case errors.Is(err, tabs.ErrLastTab):
		return http.StatusConflict
	case errors.Is(err, audio.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, audio.ErrDescramble), errors.Is(err, audio.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, audio.ErrHardware):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.ErrorField(err))
	}
	writeError(w, status, err.Error())
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// findAsset looks uuid up in the open tabs, then in the catalog.
func (h *APIHandler) findAsset(ctx context.Context, uuid string) (*model.SampleAsset, error) {
	if asset := h.store.Tabs().FindAsset(uuid); asset != nil {
		return asset, nil
	}
	if h.samples == nil {
		return nil, nil
	}
	return h.samples.FindByUUID(ctx, uuid)
}

// GetSampleHandler returns one sample by uuid.
func (h *APIHandler) GetSampleHandler(w http.ResponseWriter, r *http.Request) {
	uuid := muxVar(r, "uuid")
	asset, err := h.findAsset(r.Context(), uuid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if asset == nil {
		writeError(w, http.StatusNotFound, "sample not found")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"sample": asset,
		"cached": h.pipeline.Has(uuid),
	})
}
