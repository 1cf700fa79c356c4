package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/KarpovAlexandrGo/tasks-api/internal/apperror"
	"github.com/KarpovAlexandrGo/tasks-api/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const internalErrorMessage = "Something went wrong, please try again later"

type errorResponse struct {
	Error string `json:"error"`
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle is the only place where service errors become HTTP responses.
func handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(w, r, err)
		}
	}
}

func statusFor(err error) (int, string) {
	e, ok := apperror.From(err)
	if !ok {
		return http.StatusInternalServerError, internalErrorMessage
	}
	switch e.Kind() {
	case apperror.KindValidation, apperror.KindConflict:
		return http.StatusBadRequest, e.Message()
	case apperror.KindNotFound, apperror.KindRouteNotFound:
		return http.StatusNotFound, e.Message()
	case apperror.KindPersistence:
		return http.StatusInternalServerError, e.Message()
	default:
		return http.StatusInternalServerError, internalErrorMessage
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)

	entry := logger.Log.WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     status,
	})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("Request failed")
	} else {
		entry.WithError(err).Debug("Request rejected")
	}

	if apperror.KindOf(err) == apperror.KindRouteNotFound {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, message)
		return
	}
	respondWithError(w, status, message)
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, apperror.RouteNotFound())
}

// recoverer turns a panic into the generic 500 body. Modeled on chi's Recoverer.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				logger.Log.WithFields(logrus.Fields{
					"request_id": middleware.GetReqID(r.Context()),
					"panic":      rvr,
					"stack":      string(debug.Stack()),
				}).Error("Recovered from panic")
				respondWithError(w, http.StatusInternalServerError, internalErrorMessage)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// decodeJSON decodes a single JSON value from the request body into dst.
// An empty body leaves dst as is; trailing data after the value is rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperror.Validation("Invalid request payload")
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return apperror.Validation("Invalid request payload")
	}
	return nil
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Log.WithError(err).Error("Failed to encode response")
		}
	}
}
