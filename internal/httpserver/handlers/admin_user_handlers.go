package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"infinitetms/internal/auth"
	"infinitetms/internal/models"
	"infinitetms/internal/service"
)

func ListUsers(svc UserAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := svc.List(r.Context())
		if err != nil {
			respondError(w, lg, err)
			return
		}
		if users == nil {
			users = []models.User{}
		}
		respondJSON(w, users)
	}
}

func CreateUser(svc UserAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.CreateUserInput
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		u, err := svc.Create(r.Context(), auth.FromContext(r.Context()), req)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondStatus(w, http.StatusCreated, u)
	}
}

func GetUser(svc UserAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			respondError(w, lg, err)
			return
		}
		u, err := svc.Get(r.Context(), id)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, u)
	}
}

func UpdateUser(svc UserAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			respondError(w, lg, err)
			return
		}
		var req service.UpdateUserInput
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		u, err := svc.Update(r.Context(), auth.FromContext(r.Context()), id, req)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, u)
	}
}

func DeleteUser(svc UserAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			respondError(w, lg, err)
			return
		}
		if err := svc.Delete(r.Context(), auth.FromContext(r.Context()), id); err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, map[string]any{"deleted": true})
	}
}

type profileReq struct {
	Name        *string `json:"name"`
	Phone       *string `json:"phone"`
	Location    *string `json:"location"`
	Designation *string `json:"designation"`
}

// UpdateProfile accepts JSON, or a multipart form that may carry an
// "avatar" file alongside the text fields.
func UpdateProfile(svc UserAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.ProfileInput
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			var req profileReq
			if err := decodeJSON(r, &req); err != nil {
				respondError(w, lg, err)
				return
			}
			in = service.ProfileInput{Name: req.Name, Phone: req.Phone, Location: req.Location, Designation: req.Designation}
		} else {
			if err := parseForm(r); err != nil {
				respondError(w, lg, err)
				return
			}
			avatar, closeFile, err := formFile(r, "avatar")
			if err != nil {
				respondError(w, lg, err)
				return
			}
			defer closeFile()
			in = service.ProfileInput{
				Name:        formString(r, "name"),
				Phone:       formString(r, "phone"),
				Location:    formString(r, "location"),
				Designation: formString(r, "designation"),
				Avatar:      avatar,
			}
		}
		u, err := svc.UpdateProfile(r.Context(), auth.UserID(r.Context()), in)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, u)
	}
}
