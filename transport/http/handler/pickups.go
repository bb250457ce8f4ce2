package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/X1ag/PickupNotifier/internal/domain"
	"github.com/X1ag/PickupNotifier/internal/usecase"
	"github.com/go-chi/chi/v5"
)

type PickupHandler struct {
	UC *usecase.PickupUsecase
}

type createPickupReq struct {
	StoreID           int64   `json:"store_id"`
	WorkerID          *int64  `json:"worker_id"`
	StaffID           *int64  `json:"staff_id"`
	HotelID           *int64  `json:"hotel_id"`
	StartAt           string  `json:"start_at"` // RFC3339
	CourseMinutes     int     `json:"course_minutes"`
	ExtensionMinutes  int     `json:"extension_minutes"`
	ExitAt            *string `json:"exit_at"` // RFC3339 optional
	WorkerLeadMinutes int     `json:"worker_lead_minutes"`
	StaffLeadMinutes  int     `json:"staff_lead_minutes"`
}

type pickupDTO struct {
	ID                int64     `json:"id"`
	StoreID           int64     `json:"store_id"`
	WorkerID          *int64    `json:"worker_id"`
	StaffID           *int64    `json:"staff_id"`
	HotelID           *int64    `json:"hotel_id"`
	StartAt           time.Time `json:"start_at"`
	CourseMinutes     int       `json:"course_minutes"`
	ExtensionMinutes  int       `json:"extension_minutes"`
	ExitAt            time.Time `json:"exit_at"`
	WorkerLeadMinutes int       `json:"worker_lead_minutes"`
	StaffLeadMinutes  int       `json:"staff_lead_minutes"`
	WorkerCallSent    bool      `json:"worker_call_sent"`
	StaffMessageSent  bool      `json:"staff_message_sent"`
}

func toPickupDTO(ev *domain.PickupEvent) pickupDTO {
	return pickupDTO{
		ID:                ev.ID,
		StoreID:           ev.StoreID,
		WorkerID:          ev.WorkerID,
		StaffID:           ev.StaffID,
		HotelID:           ev.HotelID,
		StartAt:           ev.StartAt,
		CourseMinutes:     ev.CourseMinutes,
		ExtensionMinutes:  ev.ExtensionMinutes,
		ExitAt:            ev.ExitAt,
		WorkerLeadMinutes: ev.WorkerLeadMinutes,
		StaffLeadMinutes:  ev.StaffLeadMinutes,
		WorkerCallSent:    ev.WorkerCallSent,
		StaffMessageSent:  ev.StaffMessageSent,
	}
}

func (h *PickupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPickupReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	startAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartAt))
	if err != nil {
		http.Error(w, "invalid start_at (RFC3339)", http.StatusBadRequest)
		return
	}

	ev := &domain.PickupEvent{
		StoreID:           req.StoreID,
		WorkerID:          req.WorkerID,
		StaffID:           req.StaffID,
		HotelID:           req.HotelID,
		StartAt:           startAt,
		CourseMinutes:     req.CourseMinutes,
		ExtensionMinutes:  req.ExtensionMinutes,
		WorkerLeadMinutes: req.WorkerLeadMinutes,
		StaffLeadMinutes:  req.StaffLeadMinutes,
	}
	if req.ExitAt != nil && strings.TrimSpace(*req.ExitAt) != "" {
		ev.ExitAt, err = time.Parse(time.RFC3339, strings.TrimSpace(*req.ExitAt))
		if err != nil {
			http.Error(w, "invalid exit_at (RFC3339)", http.StatusBadRequest)
			return
		}
	}

	if err := h.UC.Register(r.Context(), ev); err != nil {
		writePickupError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPickupDTO(ev))
}

type extendReq struct {
	Minutes int `json:"minutes"`
}

func (h *PickupHandler) Extend(w http.ResponseWriter, r *http.Request) {
	id, ok := pickupID(w, r)
	if !ok {
		return
	}

	var req extendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	ev, err := h.UC.Extend(r.Context(), id, req.Minutes)
	if err != nil {
		writePickupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPickupDTO(ev))
}

type assignReq struct {
	WorkerID *int64 `json:"worker_id"`
	StaffID  *int64 `json:"staff_id"`
}

func (h *PickupHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	id, ok := pickupID(w, r)
	if !ok {
		return
	}

	var req assignReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	ev, err := h.UC.Reassign(r.Context(), id, req.WorkerID, req.StaffID)
	if err != nil {
		writePickupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPickupDTO(ev))
}

func pickupID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writePickupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPickupNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrStoreEmpty),
		errors.Is(err, domain.ErrStartTimeEmpty),
		errors.Is(err, domain.ErrCourseMinutes),
		errors.Is(err, domain.ErrNegativeMinutes),
		errors.Is(err, domain.ErrExitBeforeStart),
		errors.Is(err, domain.ErrUnknownReference):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrPickupExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}
