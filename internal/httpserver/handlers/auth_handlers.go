package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"infinitetms/internal/apperr"
	"infinitetms/internal/auth"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Login(svc AuthAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		res, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, res)
	}
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

func RefreshToken(svc AuthAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		if req.RefreshToken == "" {
			respondError(w, lg, apperr.Validation("refreshToken is required"))
			return
		}
		res, err := svc.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, res)
	}
}

func Logout(svc AuthAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Logout(r.Context(), auth.FromContext(r.Context())); err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, map[string]any{"ok": true})
	}
}

func Me(svc AuthAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Me(r.Context(), auth.UserID(r.Context()))
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, res)
	}
}
