package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"infinitetms/internal/auth"
	"infinitetms/internal/models"
)

// MyLogs returns the caller's audit trail; ?all=1 lets administrators see
// everyone's.
func MyLogs(svc AuditAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := r.URL.Query().Get("all") == "1"
		logs, err := svc.List(r.Context(), auth.FromContext(r.Context()), all)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		if logs == nil {
			logs = []models.AuditLog{}
		}
		respondJSON(w, logs)
	}
}
