package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"infinitetms/internal/apperr"
	"infinitetms/internal/auth"
	"infinitetms/internal/models"
	"infinitetms/internal/service"
)

type markAttendanceReq struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func MarkAttendance(svc AttendanceAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req markAttendanceReq
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		if req.Latitude == nil || req.Longitude == nil {
			respondError(w, lg, apperr.Validation("Location data is required."))
			return
		}
		res, err := svc.Mark(r.Context(), auth.UserID(r.Context()), *req.Latitude, *req.Longitude)
		var outside *service.OutsideOfficeError
		if errors.As(err, &outside) {
			respondStatus(w, http.StatusForbidden, map[string]any{"error": outside.Error(), "distance": outside.Distance})
			return
		}
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, res)
	}
}

func AttendanceHistory(svc AttendanceAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userIDQuery(r)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		rows, err := svc.History(r.Context(), auth.FromContext(r.Context()), uid)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		if rows == nil {
			rows = []models.Attendance{}
		}
		respondJSON(w, rows)
	}
}

func UploadDocument(svc DocumentAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseForm(r); err != nil {
			respondError(w, lg, err)
			return
		}
		file, closeFile, err := formFile(r, "file")
		if err != nil {
			respondError(w, lg, err)
			return
		}
		defer closeFile()
		if file == nil {
			respondError(w, lg, apperr.Validation("file is required"))
			return
		}
		d, err := svc.Upload(r.Context(), auth.UserID(r.Context()), r.FormValue("documentType"), *file)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondStatus(w, http.StatusCreated, d)
	}
}

func ListDocuments(svc DocumentAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userIDQuery(r)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		docs, err := svc.List(r.Context(), auth.FromContext(r.Context()), uid)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		if docs == nil {
			docs = []models.Document{}
		}
		respondJSON(w, docs)
	}
}

func DeleteDocument(svc DocumentAPI, lg *zap.SugaredLogger) http.HandlerFunc {
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

func ListWorkUpdates(svc WorkUpdateAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := userIDQuery(r)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		rows, err := svc.List(r.Context(), auth.FromContext(r.Context()), uid)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		if rows == nil {
			rows = []models.WorkUpdate{}
		}
		respondJSON(w, rows)
	}
}

func CreateWorkUpdate(svc WorkUpdateAPI, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.WorkUpdateInput
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		wu, err := svc.Create(r.Context(), auth.UserID(r.Context()), req)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondStatus(w, http.StatusCreated, wu)
	}
}
