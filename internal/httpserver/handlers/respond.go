package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"infinitetms/internal/apperr"
	"infinitetms/internal/storage"
)

const multipartMemory = 8 << 20

func respondJSON(w http.ResponseWriter, v interface{}) {
	respondStatus(w, http.StatusOK, v)
}

func respondStatus(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// respondError writes {"error": "..."} with the status apperr maps err to.
// Unclassified errors are logged and hidden behind a generic message.
func respondError(w http.ResponseWriter, lg *zap.SugaredLogger, err error) {
	code := apperr.HTTPStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		lg.Errorw("request failed", "error", err)
		msg = "internal server error"
	}
	respondStatus(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is empty")
		}
		return apperr.Validation("malformed JSON: " + err.Error())
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

// userIDQuery reads the optional ?userId= filter.
func userIDQuery(r *http.Request) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("userId"))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperr.Validation("invalid userId")
	}
	return &id, nil
}

// parseForm accepts multipart and urlencoded bodies alike.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(multipartMemory)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		if errors.Is(err, http.ErrNotMultipart) {
			if perr := r.ParseForm(); perr != nil {
				return apperr.Validation("malformed form: " + perr.Error())
			}
		}
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Validation(fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
	}
	return apperr.Validation("malformed multipart form: " + err.Error())
}

// formFile returns the uploaded file under field, or nil when none was sent.
// The caller must call the returned close func.
func formFile(r *http.Request, field string) (*storage.Upload, func(), error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, apperr.Validation("invalid " + field + ": " + err.Error())
	}
	return &storage.Upload{Filename: hdr.Filename, Content: f}, func() { _ = f.Close() }, nil
}

// formString distinguishes an absent field (nil) from an empty one.
func formString(r *http.Request, field string) *string {
	if vs, ok := r.PostForm[field]; ok && len(vs) > 0 {
		return &vs[0]
	}
	return nil
}
