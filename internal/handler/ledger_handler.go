package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"prizeledger/internal/authz"
	"prizeledger/internal/domain"
	"prizeledger/internal/middleware"
	"prizeledger/internal/service"
	"prizeledger/pkg/errors"
	"prizeledger/pkg/logger"
)

const defaultEventLimit = 100

// LedgerHandler exposes the prize ledger over HTTP.
type LedgerHandler struct {
	service  *service.LedgerService
	registry *authz.Registry
	log      *logger.Logger
}

func NewLedgerHandler(svc *service.LedgerService, registry *authz.Registry, log *logger.Logger) *LedgerHandler {
	return &LedgerHandler{
		service:  svc,
		registry: registry,
		log:      log,
	}
}

// CreateHackathon handles POST /api/v1/hackathons
func (h *LedgerHandler) CreateHackathon(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.respondError(w, r, errors.New(errors.KindAuthentication, "Authentication required"))
		return
	}

	var req domain.CreateHackathonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, errors.New(errors.KindValidation, "Invalid request body"))
		return
	}

	resp, err := h.service.CreateHackathon(r.Context(), caller, &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

// SetPrizes handles POST /api/v1/hackathons/{hackathonId}/prizes
func (h *LedgerHandler) SetPrizes(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.respondError(w, r, errors.New(errors.KindAuthentication, "Authentication required"))
		return
	}

	hackathonID, err := h.hackathonID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req domain.SetPrizesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, errors.New(errors.KindValidation, "Invalid request body"))
		return
	}

	resp, err := h.service.SetPrizes(r.Context(), caller, hackathonID, &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// ClaimPrize handles POST /api/v1/hackathons/{hackathonId}/claim
// The authenticated caller claims their own allocation.
func (h *LedgerHandler) ClaimPrize(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.respondError(w, r, errors.New(errors.KindAuthentication, "Authentication required"))
		return
	}

	hackathonID, err := h.hackathonID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp, err := h.service.ClaimPrize(r.Context(), caller, hackathonID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// BatchDistribute handles POST /api/v1/hackathons/{hackathonId}/distribute
func (h *LedgerHandler) BatchDistribute(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.respondError(w, r, errors.New(errors.KindAuthentication, "Authentication required"))
		return
	}

	hackathonID, err := h.hackathonID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req domain.BatchDistributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, errors.New(errors.KindValidation, "Invalid request body"))
		return
	}

	resp, err := h.service.BatchDistribute(r.Context(), caller, hackathonID, &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// DeactivateHackathon handles POST /api/v1/hackathons/{hackathonId}/deactivate
func (h *LedgerHandler) DeactivateHackathon(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.respondError(w, r, errors.New(errors.KindAuthentication, "Authentication required"))
		return
	}

	hackathonID, err := h.hackathonID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.service.DeactivateHackathon(r.Context(), caller, hackathonID); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"hackathon_id": hackathonID,
		"active":       false,
	})
}

// EmergencyWithdraw handles POST /api/v1/admin/emergency-withdraw
func (h *LedgerHandler) EmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.respondError(w, r, errors.New(errors.KindAuthentication, "Authentication required"))
		return
	}

	var req domain.EmergencyWithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, errors.New(errors.KindValidation, "Invalid request body"))
		return
	}

	if err := h.service.EmergencyWithdraw(r.Context(), caller, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"token":  req.Token,
		"to":     req.To,
		"amount": req.Amount,
	})
}

// Pause handles POST /api/v1/admin/pause
func (h *LedgerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.respondError(w, r, errors.New(errors.KindAuthentication, "Authentication required"))
		return
	}

	if err := h.service.Pause(caller); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"paused": true})
}

// Unpause handles POST /api/v1/admin/unpause
func (h *LedgerHandler) Unpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.respondError(w, r, errors.New(errors.KindAuthentication, "Authentication required"))
		return
	}

	if err := h.service.Unpause(caller); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"paused": false})
}

// GrantRole handles POST /api/v1/admin/roles/grant
func (h *LedgerHandler) GrantRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.respondError(w, r, errors.New(errors.KindAuthentication, "Authentication required"))
		return
	}

	var req domain.RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, errors.New(errors.KindValidation, "Invalid request body"))
		return
	}

	if err := h.registry.Grant(caller, req.Role, req.Address); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"role":    req.Role,
		"address": req.Address,
		"granted": true,
	})
}

// RevokeRole handles POST /api/v1/admin/roles/revoke
func (h *LedgerHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.respondError(w, r, errors.New(errors.KindAuthentication, "Authentication required"))
		return
	}

	var req domain.RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, errors.New(errors.KindValidation, "Invalid request body"))
		return
	}

	if err := h.registry.Revoke(caller, req.Role, req.Address); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"role":    req.Role,
		"address": req.Address,
		"granted": false,
	})
}

// GetHackathonInfo handles GET /api/v1/hackathons/{hackathonId}
func (h *LedgerHandler) GetHackathonInfo(w http.ResponseWriter, r *http.Request) {
	hackathonID, err := h.hackathonID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	info, err := h.service.GetHackathonInfo(r.Context(), hackathonID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, info)
}

// GetPrizeAmount handles GET /api/v1/hackathons/{hackathonId}/prizes/{address}
func (h *LedgerHandler) GetPrizeAmount(w http.ResponseWriter, r *http.Request) {
	hackathonID, err := h.hackathonID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	address := chi.URLParam(r, "address")
	if address == "" {
		h.respondError(w, r, errors.New(errors.KindValidation, "Address is required"))
		return
	}

	resp, err := h.service.GetPrizeAmount(r.Context(), hackathonID, address)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// CanClaim handles GET /api/v1/hackathons/{hackathonId}/claimable/{address}
func (h *LedgerHandler) CanClaim(w http.ResponseWriter, r *http.Request) {
	hackathonID, err := h.hackathonID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	address := chi.URLParam(r, "address")
	if address == "" {
		h.respondError(w, r, errors.New(errors.KindValidation, "Address is required"))
		return
	}

	h.respondJSON(w, http.StatusOK, h.service.CanClaim(r.Context(), hackathonID, address))
}

// GetEvents handles GET /api/v1/hackathons/{hackathonId}/events
func (h *LedgerHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	hackathonID, err := h.hackathonID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.respondError(w, r, errors.New(errors.KindValidation, "Limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	events, err := h.service.GetEvents(r.Context(), hackathonID, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"hackathon_id": hackathonID,
		"events":       events,
	})
}

// GetStats handles GET /api/v1/stats
func (h *LedgerHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.GetStats(r.Context()))
}

func (h *LedgerHandler) hackathonID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "hackathonId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, errors.New(errors.KindValidation, "Hackathon id must be a non-negative integer")
	}
	return id, nil
}

func (h *LedgerHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.WithError(err).Error("Failed to encode response")
	}
}

func (h *LedgerHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		h.log.WithError(err).Error("Unexpected error")
		appErr = errors.Wrap(errors.KindInternal, "Internal server error", err)
	}

	if appErr.StatusCode() >= http.StatusInternalServerError {
		h.log.WithError(appErr).Error("Request failed")
	} else {
		h.log.WithError(appErr).Warn("Request rejected")
	}

	response := &errors.ErrorResponse{}
	response.Error.Kind = appErr.Kind
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)
	if requestID, ok := r.Context().Value(middleware.RequestIDContextKey).(string); ok {
		response.Error.RequestID = requestID
	}

	h.respondJSON(w, appErr.StatusCode(), response)
}
