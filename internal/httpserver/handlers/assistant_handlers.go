package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"infinitetms/internal/apperr"
	"infinitetms/internal/assistant"
)

type chatReq struct {
	Message string              `json:"message"`
	History []assistant.Message `json:"history"`
}

// Chat always answers 200; upstream problems come back as reply text.
func Chat(svc ChatAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			respondError(w, lg, apperr.Validation("message is required"))
			return
		}
		respondJSON(w, map[string]any{"reply": svc.Chat(r.Context(), req.Message, req.History)})
	}
}
