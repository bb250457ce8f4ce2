package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/X1ag/PickupNotifier/transport/worker"
)

type Dispatcher interface {
	Status() worker.Status
	RunOnce(ctx context.Context) worker.TickReport
}

type DispatcherHandler struct {
	Dispatcher Dispatcher
}

func (h *DispatcherHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Dispatcher.Status())
}

// Run performs one tick now. It waits for a tick already in progress. The
// tick outlives the request so a dropped client cannot cut it short.
func (h *DispatcherHandler) Run(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Dispatcher.RunOnce(context.WithoutCancel(r.Context())))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
