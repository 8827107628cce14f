package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// ListTabsHandler lists the open tabs.
func (h *APIHandler) ListTabsHandler(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.store.Tabs().List())
}

// CreateTabHandler opens a new tab and activates it.
func (h *APIHandler) CreateTabHandler(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusCreated, h.store.Tabs().Add())
}

// GetTabHandler returns the full state of one tab.
func (h *APIHandler) GetTabHandler(w http.ResponseWriter, r *http.Request) {
	tab, err := h.store.Tabs().Snapshot(muxVar(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, newTabView(tab))
}

// CloseTabHandler closes a tab. The last tab cannot be closed.
func (h *APIHandler) CloseTabHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Tabs().Close(muxVar(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, h.store.Tabs().List())
}

// SwitchTabHandler activates a tab.
func (h *APIHandler) SwitchTabHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Tabs().Switch(muxVar(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, h.store.Tabs().List())
}
