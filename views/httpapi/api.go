// Package httpapi is the HTTP control surface: service start/stop, the
// confirmation countdown and incident history.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Nhashaamn/resq/controller"
	"github.com/Nhashaamn/resq/models"
	"github.com/Nhashaamn/resq/services/store"
	"github.com/Nhashaamn/resq/utils"
)

// ServiceControl switches shake detection on and off.
type ServiceControl interface {
	Activate() bool
	Deactivate() bool
	Stats() controller.MonitorStats
}

// CountdownControl is the confirmation screen's view of the countdown.
type CountdownControl interface {
	Confirm(ctx context.Context) (models.Incident, error)
	Decline(ctx context.Context) (models.Incident, error)
	Status() controller.CountdownStatus
}

// IncidentReader serves incident history.
type IncidentReader interface {
	ListIncidents(limit int) ([]models.Incident, error)
	GetIncident(id string) (models.Incident, error)
}

// APIError is the JSON error body.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeServiceError = "SERVICE_ERROR"
	CodeNoCountdown  = "NO_COUNTDOWN"
	CodeNotFound     = "NOT_FOUND"
	CodeBadRequest   = "BAD_REQUEST"
	CodeInternal     = "INTERNAL"
)

// API exposes the service over HTTP. incidents may be nil when no store is
// configured.
type API struct {
	service   ServiceControl
	countdown CountdownControl
	incidents IncidentReader
}

func NewAPI(service ServiceControl, countdown CountdownControl, incidents IncidentReader) *API {
	return &API{service: service, countdown: countdown, incidents: incidents}
}

// Router builds the route table.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	r.HandleFunc("/service", a.getService).Methods("GET")
	r.HandleFunc("/service/start", a.startService).Methods("POST")
	r.HandleFunc("/service/stop", a.stopService).Methods("POST")

	r.HandleFunc("/countdown", a.getCountdown).Methods("GET")
	r.HandleFunc("/countdown/confirm", a.confirm).Methods("POST")
	r.HandleFunc("/countdown/decline", a.decline).Methods("POST")

	r.HandleFunc("/incidents", a.listIncidents).Methods("GET")
	r.HandleFunc("/incidents/{id}", a.getIncident).Methods("GET")
	return r
}

func (a *API) getService(w http.ResponseWriter, r *http.Request) {
	if a.service == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceError, "monitor unavailable")
		return
	}
	writeJSON(w, http.StatusOK, a.service.Stats())
}

// startService and stopService are idempotent; "changed" tells the caller
// whether the call flipped the state.
func (a *API) startService(w http.ResponseWriter, r *http.Request) {
	if a.service == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceError, "Failed to start service: monitor unavailable")
		return
	}
	changed := a.service.Activate()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "changed": changed})
}

func (a *API) stopService(w http.ResponseWriter, r *http.Request) {
	if a.service == nil {
		writeError(w, http.StatusServiceUnavailable, CodeServiceError, "Failed to stop service: monitor unavailable")
		return
	}
	changed := a.service.Deactivate()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "changed": changed})
}

func (a *API) getCountdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.countdown.Status())
}

func (a *API) confirm(w http.ResponseWriter, r *http.Request) {
	a.resolve(w, r, a.countdown.Confirm)
}

func (a *API) decline(w http.ResponseWriter, r *http.Request) {
	a.resolve(w, r, a.countdown.Decline)
}

func (a *API) resolve(w http.ResponseWriter, r *http.Request, fn func(context.Context) (models.Incident, error)) {
	inc, err := fn(r.Context())
	switch {
	case errors.Is(err, controller.ErrNoCountdown):
		writeError(w, http.StatusConflict, CodeNoCountdown, err.Error())
	case err != nil:
		utils.L().Error("countdown signal failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, CodeServiceError, err.Error())
	default:
		writeJSON(w, http.StatusOK, inc)
	}
}

func (a *API) listIncidents(w http.ResponseWriter, r *http.Request) {
	if a.incidents == nil {
		writeJSON(w, http.StatusOK, []models.Incident{})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	list, err := a.incidents.ListIncidents(limit)
	if err != nil {
		utils.L().Error("list incidents", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "could not read incidents")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getIncident(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if a.incidents == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "incident not found")
		return
	}
	inc, err := a.incidents.GetIncident(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "incident not found")
		return
	}
	if err != nil {
		utils.L().Error("get incident", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "could not read incident")
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.L().Debug("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, APIError{Code: code, Message: msg})
}
