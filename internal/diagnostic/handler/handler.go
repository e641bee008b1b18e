package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"execledger/internal/diagnostic/models"
	id "execledger/pkg/domain"
	dErrors "execledger/pkg/domain-errors"
	"execledger/pkg/platform/httputil"
	"execledger/pkg/requestcontext"
)

// Service defines the diagnostic log operations used by the handler.
type Service interface {
	Append(ctx context.Context, policyID id.PolicyID, message string) (id.LogIndex, error)
	Get(ctx context.Context, policyID id.PolicyID, index id.LogIndex) (*models.Entry, error)
	Count(ctx context.Context, policyID id.PolicyID) (uint64, error)
}

// Handler serves the diagnostic log endpoints. None of them require
// authentication.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the diagnostic log routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/policies/{policyID}/logs", h.HandleAppend)
	r.Get("/v1/policies/{policyID}/logs", h.HandleCount)
	r.Get("/v1/policies/{policyID}/logs/{logIndex}", h.HandleGet)
}

type AppendLogRequest struct {
	Message *string `json:"message"`
}

// Validate only requires the field to be present; an empty message is kept.
func (r *AppendLogRequest) Validate() error {
	if r.Message == nil {
		return dErrors.New(dErrors.CodeValidation, "message is required")
	}
	return nil
}

type AppendLogResponse struct {
	PolicyID uint64 `json:"policy_id"`
	LogIndex uint64 `json:"log_index"`
}

type LogEntryResponse struct {
	PolicyID uint64 `json:"policy_id"`
	LogIndex uint64 `json:"log_index"`
	Message  string `json:"message"`
}

type LogCountResponse struct {
	PolicyID uint64 `json:"policy_id"`
	Count    uint64 `json:"count"`
}

func (h *Handler) HandleAppend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AppendLogRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	index, err := h.service.Append(ctx, policyID, *req.Message)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, &AppendLogResponse{
		PolicyID: uint64(policyID),
		LogIndex: uint64(index),
	})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	index, err := id.ParseLogIndex(chi.URLParam(r, "logIndex"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entry, err := h.service.Get(ctx, policyID, index)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "get diagnostic log failed",
				"request_id", requestcontext.RequestID(ctx),
				"policy_id", policyID.String(),
				"log_index", index.String(),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &LogEntryResponse{
		PolicyID: uint64(entry.PolicyID),
		LogIndex: uint64(entry.LogIndex),
		Message:  entry.Message,
	})
}

func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.service.Count(ctx, policyID)
	if err != nil {
		h.logger.ErrorContext(ctx, "count diagnostic logs failed",
			"request_id", requestcontext.RequestID(ctx),
			"policy_id", policyID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &LogCountResponse{PolicyID: uint64(policyID), Count: n})
}
