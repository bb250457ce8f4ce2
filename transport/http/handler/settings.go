package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/X1ag/PickupNotifier/internal/domain"
	"github.com/go-chi/chi/v5"
)

type SettingsHandler struct {
	Repo domain.SettingsRepository
}

type putSettingReq struct {
	Value string `json:"value"`
}

func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	storeID, err := strconv.ParseInt(chi.URLParam(r, "storeID"), 10, 64)
	if err != nil || storeID < 0 {
		http.Error(w, "invalid store id", http.StatusBadRequest)
		return
	}
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	if key == "" {
		http.Error(w, "key required", http.StatusBadRequest)
		return
	}

	var req putSettingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	if err := h.Repo.Set(r.Context(), storeID, key, req.Value); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
