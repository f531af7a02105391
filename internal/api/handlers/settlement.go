package handlers

import (
	"errors"
	"net/http"

	"github.com/giftshift/giftshift-backend/internal/api/httpx"
	"github.com/giftshift/giftshift-backend/internal/config"
	"github.com/giftshift/giftshift-backend/internal/middleware"
	"github.com/giftshift/giftshift-backend/internal/services"
)

// SettlementHandler exposes the reconciliation triggers: cron sweep, recovery
// sweep, user confirm, and the admin manual processor. Exclusivity lives in
// the claim, so all four may fire at once.
type SettlementHandler struct {
	Cfg        config.Config
	Sweeper    *services.Sweeper
	Settlement *services.SettlementService
}

func NewSettlementHandler(cfg config.Config, sw *services.Sweeper, st *services.SettlementService) *SettlementHandler {
	return &SettlementHandler{Cfg: cfg, Sweeper: sw, Settlement: st}
}

// Sweep is the scheduled trigger: bounded lookback, no stale reclaim.
func (h *SettlementHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	sum := h.Sweeper.Run(r.Context(), services.SweepParams{
		Trigger: "cron",
		Window:  h.Cfg.SweepWindow,
		Limit:   h.Cfg.SweepLimit,
	})
	httpx.WriteJSON(w, http.StatusOK, sum)
}

// Recover widens the window and re-arms records stuck in processing.
func (h *SettlementHandler) Recover(w http.ResponseWriter, r *http.Request) {
	sum := h.Sweeper.Run(r.Context(), services.SweepParams{
		Trigger:      "recovery",
		Window:       h.Cfg.RecoveryWindow,
		Limit:        h.Cfg.SweepLimit,
		ReclaimStale: true,
		StaleAfter:   h.Cfg.StaleClaimAfter,
	})
	httpx.WriteJSON(w, http.StatusOK, sum)
}

func (h *SettlementHandler) ConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing credentials", nil)
		return
	}
	var req struct {
		ShiftID string `json:"shift_id"`
	}
	if err := httpx.Decode(r, &req); err != nil || req.ShiftID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "shift_id required", nil)
		return
	}

	res, err := h.Settlement.ConfirmDeposit(r.Context(), uid, req.ShiftID)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, res)
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "no deposit for that order", nil)
	case errors.Is(err, services.ErrStillPending):
		httpx.WriteJSON(w, http.StatusOK, res)
	case errors.Is(err, services.ErrAlreadyProcessed):
		res.AlreadyProcessed = true
		httpx.WriteJSON(w, http.StatusOK, res)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "confirmation failed", nil)
	}
}

func (h *SettlementHandler) ProcessRedemption(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RedemptionID string `json:"redemption_id"`
		Action       string `json:"action"`
	}
	if err := httpx.Decode(r, &req); err != nil || req.RedemptionID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "redemption_id required", nil)
		return
	}

	status, err := h.Settlement.ProcessRedemption(r.Context(), req.RedemptionID, req.Action)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "status": status})
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "redemption not found", nil)
	case errors.Is(err, services.ErrAlreadyProcessed):
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "status": status, "already_processed": true})
	case errors.Is(err, services.ErrStillPending):
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": false, "status": status, "pending": true})
	case errors.Is(err, services.ErrInvalidState):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_state", "redemption not in a processable state", nil)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "processing failed", nil)
	}
}
