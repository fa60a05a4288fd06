// Package apiserver is the minimal boundary surface named in §6: a
// status/health endpoint in the shape of the teacher's pkg/api/http.go
// handleStatus. The full blog REST translation is an out-of-scope
// external collaborator (§1) and is not reimplemented here.
package apiserver

import (
	"encoding/json"
	"net/http"

	"blograft/pkg/blogservice"
)

// Handler serves /status and /healthz for one node.
type Handler struct {
	svc *blogservice.Service
	mux *http.ServeMux
}

// NewHandler wraps svc.
func NewHandler(svc *blogservice.Service) *Handler {
	h := &Handler{svc: svc, mux: http.NewServeMux()}
	h.mux.HandleFunc("/status", h.handleStatus)
	h.mux.HandleFunc("/healthz", h.handleHealthz)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	node := h.svc.Node()
	term, isLeader := node.GetState()

	status := map[string]interface{}{
		"id":           node.GetID(),
		"term":         term,
		"is_leader":    isLeader,
		"leader_id":    node.GetLeaderID(),
		"commit_index": node.GetCommitIndex(),
		"cluster_size": node.GetClusterSize(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
