package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"SampleDeck/logger"

	"github.com/gorilla/mux"
)

const playerFeedInterval = 100 * time.Millisecond

// Server is the HTTP API in front of the search store and the player.
type Server struct {
	addr    string
	handler *APIHandler
	hub     *PlayerHub
}

func NewServer(addr string, deps Deps) *Server {
	h := NewAPIHandler(deps)
	return &Server{
		addr:    addr,
		handler: h,
		hub: NewPlayerHub(func() interface{} {
			return h.playerView()
		}, playerFeedInterval),
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Router builds the route table. ctx bounds the websocket feed.
func (s *Server) Router(ctx context.Context) *mux.Router {
	h := s.handler
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, "ok")
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(h.AuthMiddleware)

	api.HandleFunc("/tabs", h.ListTabsHandler).Methods(http.MethodGet)
	api.HandleFunc("/tabs", h.CreateTabHandler).Methods(http.MethodPost)
	api.HandleFunc("/tabs/{id}", h.GetTabHandler).Methods(http.MethodGet)
	api.HandleFunc("/tabs/{id}", h.CloseTabHandler).Methods(http.MethodDelete)
	api.HandleFunc("/tabs/{id}/active", h.SwitchTabHandler).Methods(http.MethodPut)

	api.HandleFunc("/search", h.GetSearchHandler).Methods(http.MethodGet)
	api.HandleFunc("/search/query", h.UpdateQueryHandler).Methods(http.MethodPatch)
	api.HandleFunc("/search/fetch", h.FetchHandler).Methods(http.MethodPost)
	api.HandleFunc("/search/more", h.LoadMoreHandler).Methods(http.MethodPost)
	api.HandleFunc("/search/tags", h.SelectedTagsHandler).Methods(http.MethodGet)
	api.HandleFunc("/search/tags/toggle", h.ToggleTagHandler).Methods(http.MethodPost)
	api.HandleFunc("/genres", h.GenresHandler).Methods(http.MethodGet)
	api.HandleFunc("/samples/{uuid}", h.GetSampleHandler).Methods(http.MethodGet)

	api.HandleFunc("/player", h.GetPlayerHandler).Methods(http.MethodGet)
	api.HandleFunc("/player/select", h.SelectHandler).Methods(http.MethodPost)
	api.HandleFunc("/player/play", h.PlayHandler).Methods(http.MethodPost)
	api.HandleFunc("/player/pause", h.PauseHandler).Methods(http.MethodPost)
	api.HandleFunc("/player/resume", h.ResumeHandler).Methods(http.MethodPost)
	api.HandleFunc("/player/stop", h.StopHandler).Methods(http.MethodPost)
	api.HandleFunc("/player/toggle", h.TogglePlayHandler).Methods(http.MethodPost)
	api.HandleFunc("/player/seek", h.SeekHandler).Methods(http.MethodPost)
	api.HandleFunc("/player/mute", h.ToggleMuteHandler).Methods(http.MethodPost)
	api.HandleFunc("/player/volume", h.VolumeHandler).Methods(http.MethodPut)
	api.HandleFunc("/player/repeat", h.RepeatHandler).Methods(http.MethodPut)

	api.HandleFunc("/prefetch", h.PrefetchHandler).Methods(http.MethodPost)
	api.HandleFunc("/prefetch/{uuid}", h.CancelPrefetchHandler).Methods(http.MethodDelete)
	api.HandleFunc("/cache", h.CacheHandler).Methods(http.MethodGet)
	api.HandleFunc("/cache/{uuid}", h.FreeBufferHandler).Methods(http.MethodDelete)

	ws := router.PathPrefix("/ws").Subrouter()
	ws.Use(h.AuthMiddleware)
	ws.HandleFunc("/player", s.hub.ServeWS(ctx))

	return router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(ctx),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
