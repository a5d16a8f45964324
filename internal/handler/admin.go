package handler

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

type adminResetRequest struct {
	Password string `json:"password"`
}

// handleAdminReset wipes the learning history. The endpoint is guarded by
// the bcrypt-hashed admin password from server configuration; it is
// disabled entirely when no hash is configured.
func (h *Handler) handleAdminReset(w http.ResponseWriter, r *http.Request) {
	if h.config.AdminPasswordHash == "" {
		writeError(w, http.StatusNotFound, "admin endpoints are disabled")
		return
	}

	var req adminResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.config.AdminPasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("admin reset rejected", "remote", r.RemoteAddr)
		writeError(w, http.StatusForbidden, "invalid password")
		return
	}

	if err := h.svc.ResetHistory(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("learning history reset", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
