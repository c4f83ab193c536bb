package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"odds-engine/logger"
	"odds-engine/pkg/common"
	"odds-engine/pkg/models"
)

// handleGetQuotes 获取赛事的全部赔率
func (s *Server) handleGetQuotes(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["event_id"]

	quotes, err := s.quotes.ListQuotes(r.Context(), eventID)
	if err != nil {
		logger.Errorf("[API] Error querying quotes: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to query quotes")
		return
	}
	if quotes == nil {
		quotes = []*models.Quote{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"event_id": eventID,
		"count":    len(quotes),
		"quotes":   quotes,
	})
}

// handleGetQuote 获取单个结果的当前赔率
func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	eventID := vars["event_id"]
	outcome := models.OutcomeType(vars["outcome"])

	quote, err := s.quotes.GetActiveQuote(r.Context(), eventID, outcome)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNotFound):
			writeError(w, http.StatusNotFound, "quote not found")
		case errors.Is(err, common.ErrQuoteClosed):
			writeError(w, http.StatusGone, "quote closed")
		case errors.Is(err, common.ErrQuoteSuspended):
			writeError(w, http.StatusConflict, "quote suspended")
		default:
			logger.Errorf("[API] Error querying quote: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to query quote")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"quote":   quote,
	})
}

// handleGetHistory 获取赔率变化历史（时间倒序）
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	eventID := vars["event_id"]
	outcome := models.OutcomeType(vars["outcome"])

	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
		if limit > 200 {
			limit = 200
		}
	}

	records, err := s.ledger.History(r.Context(), eventID, outcome, limit)
	if err != nil {
		logger.Errorf("[API] Error querying history: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to query history")
		return
	}
	if records == nil {
		records = []*models.ChangeRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"event_id": eventID,
		"outcome":  outcome,
		"count":    len(records),
		"history":  records,
	})
}

// handleGetTrend 获取赔率走势
func (s *Server) handleGetTrend(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	eventID := vars["event_id"]
	outcome := models.OutcomeType(vars["outcome"])

	trend, err := s.advisor.Trend(r.Context(), eventID, outcome)
	if err != nil {
		logger.Errorf("[API] Error computing trend: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to compute trend")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"event_id": eventID,
		"outcome":  outcome,
		"trend":    trend,
	})
}

// handleCloseQuotes 封盘：关闭赛事的全部赔率（管理端操作，终态）
func (s *Server) handleCloseQuotes(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["event_id"]

	closed, err := s.quotes.CloseAll(r.Context(), eventID)
	if err != nil {
		logger.Errorf("[API] Error closing quotes: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to close quotes")
		return
	}

	logger.Printf("[API] 🔒 Closed %d quotes for event %s", closed, eventID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"event_id": eventID,
		"closed":   closed,
	})
}

// handleSuspendQuote 暂停单个结果的赔率
func (s *Server) handleSuspendQuote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	eventID := vars["event_id"]
	outcome := models.OutcomeType(vars["outcome"])

	if err := s.quotes.Suspend(r.Context(), eventID, outcome); err != nil {
		switch {
		case errors.Is(err, common.ErrNotFound):
			writeError(w, http.StatusNotFound, "quote not found")
		case errors.Is(err, common.ErrQuoteClosed):
			writeError(w, http.StatusGone, "quote closed")
		case errors.Is(err, common.ErrQuoteSuspended):
			writeError(w, http.StatusConflict, "quote already suspended")
		default:
			logger.Errorf("[API] Error suspending quote: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to suspend quote")
		}
		return
	}

	logger.Printf("[API] ⏸️ Quote %s/%s suspended", eventID, outcome)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleReactivateQuote 恢复被暂停的赔率
func (s *Server) handleReactivateQuote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	eventID := vars["event_id"]
	outcome := models.OutcomeType(vars["outcome"])

	if err := s.quotes.Reactivate(r.Context(), eventID, outcome); err != nil {
		switch {
		case errors.Is(err, common.ErrNotFound):
			writeError(w, http.StatusNotFound, "no suspended quote to reactivate")
		case errors.Is(err, common.ErrQuoteClosed):
			writeError(w, http.StatusGone, "quote closed")
		default:
			logger.Errorf("[API] Error reactivating quote: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to reactivate quote")
		}
		return
	}

	logger.Printf("[API] ▶️ Quote %s/%s reactivated", eventID, outcome)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

type manualAdjustRequest struct {
	Price    decimal.Decimal `json:"price"`
	Operator string          `json:"operator"`
}

// handleManualAdjust 管理端手工调价
func (s *Server) handleManualAdjust(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	eventID := vars["event_id"]
	outcome := models.OutcomeType(vars["outcome"])

	var req manualAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Price.IsPositive() {
		writeError(w, http.StatusBadRequest, "price must be positive")
		return
	}
	if req.Operator == "" {
		req.Operator = "unknown"
	}

	result, err := s.engine.ApplyManualAdjustment(r.Context(), eventID, outcome, req.Price, req.Operator)
	if err != nil {
		logger.Errorf("[API] Manual adjustment failed: %v", err)
		writeError(w, http.StatusInternalServerError, "manual adjustment failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}

// handleRecalculate 手动触发一次重算
func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	eventID := vars["event_id"]
	outcome := models.OutcomeType(vars["outcome"])

	if !models.IsValidOutcome(outcome) {
		writeError(w, http.StatusBadRequest, "unknown outcome type")
		return
	}

	result, err := s.engine.Recalculate(r.Context(), eventID, outcome, models.ReasonScheduledRefresh)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event or quote not found")
			return
		}
		logger.Errorf("[API] Recalculation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "recalculation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}

type registerWagerRequest struct {
	EventID     string             `json:"event_id"`
	OutcomeType models.OutcomeType `json:"outcome_type"`
	Amount      decimal.Decimal    `json:"amount"`
}

// handleRegisterWager 登记一笔已成交投注（HTTP 入口）
func (s *Server) handleRegisterWager(w http.ResponseWriter, r *http.Request) {
	var req registerWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EventID == "" || !models.IsValidOutcome(req.OutcomeType) {
		writeError(w, http.StatusBadRequest, "event_id and a valid outcome_type are required")
		return
	}

	stats, err := s.intake.Register(r.Context(), req.EventID, req.OutcomeType, req.Amount)
	if err != nil {
		if errors.Is(err, common.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Errorf("[API] Failed to register wager: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to register wager")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"volume":  stats,
	})
}

// handleGetVolumes 获取赛事的投注量统计
func (s *Server) handleGetVolumes(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["event_id"]

	volumes, err := s.volumes.ListByEvent(r.Context(), eventID)
	if err != nil {
		logger.Errorf("[API] Error querying volumes: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to query volumes")
		return
	}
	if volumes == nil {
		volumes = []*models.VolumeStats{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"event_id": eventID,
		"count":    len(volumes),
		"volumes":  volumes,
	})
}
