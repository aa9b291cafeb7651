package api

import (
	"net/http"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	status := "ok"
	httpStatus := http.StatusOK
	if err := h.Store.Ping(r.Context()); err != nil {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}
	payload := map[string]interface{}{
		"status":       status,
		"assetStorage": h.Store.AssetStorageEnabled(),
	}
	writeJSON(w, httpStatus, payload)
}
