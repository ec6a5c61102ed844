package transport

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/danielpatrickdp/exergate/internal/governance"
	"github.com/danielpatrickdp/exergate/internal/metrics"
)

// #region api
// API is the HTTP control surface: state reads for display clients and
// media/exemption writes for the session operator.
type API struct {
	engine  Engine
	roster  Roster
	metrics *metrics.Metrics
}

// NewAPI creates the HTTP API over the engine and roster. metrics may be nil.
func NewAPI(engine Engine, roster Roster, m *metrics.Metrics) *API {
	return &API{engine: engine, roster: roster, metrics: m}
}

// Register mounts the API routes on a router. Every route is instrumented
// with request counts and durations, labeled by the route template so path
// parameters never explode the label set.
func (a *API) Register(r *mux.Router) {
	a.handle(r, http.MethodGet, "/api/state", a.handleGetState)
	a.handle(r, http.MethodGet, "/api/diagnostics", a.handleGetDiagnostics)
	a.handle(r, http.MethodGet, "/api/media", a.handleGetMedia)
	a.handle(r, http.MethodPost, "/api/media", a.handleSetMedia)
	a.handle(r, http.MethodPost, "/api/participants/{id}/exempt", a.handleSetExempt)
	a.handle(r, http.MethodDelete, "/api/participants/{id}", a.handleRemoveParticipant)
}

func (a *API) handle(r *mux.Router, method, route string, h http.HandlerFunc) {
	r.Handle(route, a.metrics.WrapHandler(route, h)).Methods(method)
}

// #endregion api

// #region read-handlers
func (a *API) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewStatePayload(a.engine.GetState()))
}

func (a *API) handleGetDiagnostics(w http.ResponseWriter, r *http.Request) {
	d := a.engine.Diagnostics()
	zonesByID := make(map[string]string, len(d.ParticipantZones))
	for id, z := range d.ParticipantZones {
		zonesByID[id] = string(z)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":              NewStatePayload(d.State),
		"media":              d.Media,
		"rank_table":         d.RankTable,
		"participant_zones":  zonesByID,
		"ghost_ids":          d.GhostIDs,
		"exempt_ids":         d.ExemptIDs,
		"policy_id":          d.PolicyID,
		"policy_load_failed": d.PolicyLoadFailed,
	})
}

func (a *API) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Media())
}

// #endregion read-handlers

// #region write-handlers
func (a *API) handleSetMedia(w http.ResponseWriter, r *http.Request) {
	var m governance.GovernedMedia
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "malformed media body")
		return
	}
	if err := a.engine.SetGovernedMedia(m); err != nil {
		// The engine degrades to a locked configuration-error state; the
		// caller still learns the policy was unresolvable.
		log.Printf("[API] media change: %v", err)
	}
	st := a.engine.Evaluate(governance.TriggerSnapshot)
	writeJSON(w, http.StatusOK, NewStatePayload(st))
}

type exemptRequest struct {
	Exempt bool `json:"exempt"`
}

func (a *API) handleSetExempt(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req exemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed exempt body")
		return
	}
	if !a.roster.SetExempt(id, req.Exempt) {
		writeError(w, http.StatusNotFound, "unknown participant")
		return
	}
	st := a.engine.Evaluate(governance.TriggerSnapshot)
	writeJSON(w, http.StatusOK, NewStatePayload(st))
}

func (a *API) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a.roster.Remove(id)
	st := a.engine.Evaluate(governance.TriggerSnapshot)
	writeJSON(w, http.StatusOK, NewStatePayload(st))
}

// #endregion write-handlers

// #region helpers
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// #endregion helpers
