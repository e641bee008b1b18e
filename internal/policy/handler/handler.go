package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"execledger/internal/policy/models"
	id "execledger/pkg/domain"
	dErrors "execledger/pkg/domain-errors"
	"execledger/pkg/platform/httputil"
	"execledger/pkg/requestcontext"
)

// Service defines the policy registry operations used by the handler.
type Service interface {
	Create(ctx context.Context, caller id.Principal, merkleRoot id.MerkleRoot) (*models.Policy, error)
	Get(ctx context.Context, policyID id.PolicyID) (*models.Policy, error)
	Count(ctx context.Context) (uint64, error)
	List(ctx context.Context, offset, limit uint64) ([]*models.Policy, uint64, error)
}

// Handler serves the policy registry endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the policy routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/policies", h.HandleCreate)
	r.Get("/v1/policies", h.HandleList)
	r.Get("/v1/policies/count", h.HandleCount)
	r.Get("/v1/policies/{policyID}", h.HandleGet)
}

// HandleCreate registers a new policy. The caller must be authenticated and
// on the oracle allow-list.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "bearer token required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreatePolicyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	policy, err := h.service.Create(ctx, caller, req.Root())
	if err != nil {
		h.logger.WarnContext(ctx, "create policy failed",
			"request_id", requestID,
			"caller", caller.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Location", "/v1/policies/"+policy.ID.String())
	httputil.WriteJSON(w, http.StatusCreated, &CreatePolicyResponse{PolicyID: uint64(policy.ID)})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	policy, err := h.service.Get(ctx, policyID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "get policy failed",
				"request_id", requestcontext.RequestID(ctx),
				"policy_id", policyID.String(),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPolicyResponse(policy))
}

func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	total, err := h.service.Count(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "count policies failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &CountResponse{Total: total})
}

// HandleList returns a page of policies. offset and limit are optional query
// parameters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	offset, err := queryUint(r, "offset")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := queryUint(r, "limit")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	policies, total, err := h.service.List(ctx, offset, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "list policies failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := &ListPoliciesResponse{
		Policies: make([]PolicyResponse, 0, len(policies)),
		Total:    total,
		Offset:   offset,
	}
	for _, p := range policies {
		resp.Policies = append(resp.Policies, toPolicyResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func queryUint(r *http.Request, name string) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, name+" must be a non-negative integer")
	}
	return v, nil
}
