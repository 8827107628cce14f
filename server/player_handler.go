package server

import (
	"context"
	"net/http"

	"SampleDeck/core/audio"
	"SampleDeck/logger"
	"SampleDeck/model"
)

type playerView struct {
	audio.TransportState
	Progress float64  `json:"progress"`
	Loading  []string `json:"loading"`
}

func (h *APIHandler) playerView() playerView {
	state := h.engine.State()
	return playerView{
		TransportState: state,
		Progress:       state.Progress(),
		Loading:        h.pipeline.Loading(),
	}
}

// GetPlayerHandler returns the transport state.
func (h *APIHandler) GetPlayerHandler(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.playerView())
}

type playRequest struct {
	UUID string  `json:"uuid"`
	From float64 `json:"from"`
}

// assetFromBody resolves the uuid in a play or select body. It writes the
// error response itself and returns nil on failure.
func (h *APIHandler) assetFromBody(w http.ResponseWriter, r *http.Request, req *playRequest) *model.SampleAsset {
	if err := decodeBody(r, req); err != nil || req.UUID == "" {
		writeError(w, http.StatusBadRequest, "uuid is required")
		return nil
	}
	asset, err := h.findAsset(r.Context(), req.UUID)
	if err != nil {
		h.fail(w, r, err)
		return nil
	}
	if asset == nil {
		writeError(w, http.StatusNotFound, "sample not found")
		return nil
	}
	return asset
}

// SelectHandler makes a sample current without playing it.
func (h *APIHandler) SelectHandler(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	asset := h.assetFromBody(w, r, &req)
	if asset == nil {
		return
	}
	h.engine.Select(asset)
	writeSuccess(w, http.StatusOK, h.playerView())
}

// PlayHandler starts a sample. See dispatch for ?wait=true.
func (h *APIHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	asset := h.assetFromBody(w, r, &req)
	if asset == nil {
		return
	}
	h.dispatch(w, r, "play", func(ctx context.Context) error {
		return h.engine.Play(ctx, asset, req.From)
	})
}

func (h *APIHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	h.engine.Pause()
	writeSuccess(w, http.StatusOK, h.playerView())
}

func (h *APIHandler) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, "resume", h.engine.Resume)
}

func (h *APIHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	h.engine.Stop()
	writeSuccess(w, http.StatusOK, h.playerView())
}

func (h *APIHandler) TogglePlayHandler(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, "toggle", h.engine.TogglePlay)
}

type seekRequest struct {
	Progress float64 `json:"progress"`
}

// SeekHandler moves to a fraction of the current sample.
func (h *APIHandler) SeekHandler(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	h.dispatch(w, r, "seek", func(ctx context.Context) error {
		return h.engine.Seek(ctx, req.Progress)
	})
}

func (h *APIHandler) ToggleMuteHandler(w http.ResponseWriter, r *http.Request) {
	h.engine.ToggleMute()
	writeSuccess(w, http.StatusOK, h.playerView())
}

type volumeRequest struct {
	Volume *float64 `json:"volume"`
}

func (h *APIHandler) VolumeHandler(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := decodeBody(r, &req); err != nil || req.Volume == nil {
		writeError(w, http.StatusBadRequest, "volume is required")
		return
	}
	h.engine.SetVolume(*req.Volume)
	writeSuccess(w, http.StatusOK, h.playerView())
}

type repeatRequest struct {
	Repeat bool `json:"repeat"`
}

func (h *APIHandler) RepeatHandler(w http.ResponseWriter, r *http.Request) {
	var req repeatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	h.engine.SetRepeat(req.Repeat)
	writeSuccess(w, http.StatusOK, h.playerView())
}

// dispatch runs a transport request that may wait for a download. By default
// it runs in the background and the response carries the loading state; with
// ?wait=true the response is sent once the request settles.
func (h *APIHandler) dispatch(w http.ResponseWriter, r *http.Request, op string, run func(ctx context.Context) error) {
	if r.URL.Query().Get("wait") == "true" {
		if err := run(context.WithoutCancel(r.Context())); err != nil {
			h.fail(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, h.playerView())
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := run(context.Background()); err != nil {
			logger.Warn("Player request failed",
				logger.String("op", op),
				logger.ErrorField(err))
		}
	}()

	select {
	case <-done:
		writeSuccess(w, http.StatusOK, h.playerView())
	default:
		writeSuccess(w, http.StatusAccepted, h.playerView())
	}
}
