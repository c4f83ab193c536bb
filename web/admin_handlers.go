package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"odds-engine/logger"
	"odds-engine/pkg/common"
	"odds-engine/pkg/models"
)

// handleListEvents 获取参与扫描的赛事列表
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.events.ListSweepableEvents(r.Context())
	if err != nil {
		logger.Errorf("[API] Error querying events: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to query events")
		return
	}
	if events == nil {
		events = []*models.TrackedEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(events),
		"events":  events,
	})
}

type createEventRequest struct {
	EventID   string    `json:"event_id"`
	SportID   string    `json:"sport_id"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	KickoffAt time.Time `json:"kickoff_at"`
}

// handleCreateEvent 录入赛事并按盘口表开盘
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EventID == "" || req.KickoffAt.IsZero() {
		writeError(w, http.StatusBadRequest, "event_id and kickoff_at are required")
		return
	}

	event := &models.TrackedEvent{
		EventID:   req.EventID,
		SportID:   req.SportID,
		HomeTeam:  req.HomeTeam,
		AwayTeam:  req.AwayTeam,
		Status:    models.EventStatusOpen,
		KickoffAt: req.KickoffAt,
	}
	if err := s.events.Upsert(r.Context(), event); err != nil {
		logger.Errorf("[API] Error creating event: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	seeded, err := s.quotes.SeedEvent(r.Context(), req.EventID)
	if err != nil {
		logger.Errorf("[API] Error seeding quotes: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to seed quotes")
		return
	}

	logger.Printf("[API] 🏟️ Event %s created with %d seeded quotes", req.EventID, seeded)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"event":   event,
		"seeded":  seeded,
	})
}

type setStatusRequest struct {
	Status models.EventStatus `json:"status"`
}

// handleSetEventStatus 更新赛事状态。
// 置为 finished/cancelled/archived 时顺带封盘。
func (s *Server) handleSetEventStatus(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["event_id"]

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Status {
	case models.EventStatusOpen, models.EventStatusLive,
		models.EventStatusFinished, models.EventStatusCancelled, models.EventStatusArchived:
	default:
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	if err := s.events.SetStatus(r.Context(), eventID, req.Status); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		logger.Errorf("[API] Error setting event status: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to set status")
		return
	}

	var closed int64
	if req.Status == models.EventStatusFinished ||
		req.Status == models.EventStatusCancelled ||
		req.Status == models.EventStatusArchived {
		var err error
		closed, err = s.quotes.CloseAll(r.Context(), eventID)
		if err != nil {
			logger.Errorf("[API] Error closing quotes on status change: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  req.Status,
		"closed":  closed,
	})
}

// handleListPolicies 获取全部策略
func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := s.policies.List(r.Context())
	if err != nil {
		logger.Errorf("[API] Error querying policies: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to query policies")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"count":    len(policies),
		"policies": policies,
	})
}

// handleUpdatePolicy 更新策略参数
func (s *Server) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid policy id")
		return
	}

	var policy models.Policy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	policy.ID = id

	if err := s.policies.Update(r.Context(), &policy); err != nil {
		switch {
		case errors.Is(err, common.ErrNotFound):
			writeError(w, http.StatusNotFound, "policy not found")
		case errors.Is(err, common.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			logger.Errorf("[API] Error updating policy: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to update policy")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleActivatePolicy 激活指定策略
func (s *Server) handleActivatePolicy(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid policy id")
		return
	}

	if err := s.policies.Activate(r.Context(), id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "policy not found")
			return
		}
		logger.Errorf("[API] Error activating policy: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to activate policy")
		return
	}

	logger.Printf("[API] ⚙️ Policy %d activated", id)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
