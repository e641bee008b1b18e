package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"execledger/internal/events"
	"execledger/internal/expenditure/service"
	id "execledger/pkg/domain"
	dErrors "execledger/pkg/domain-errors"
	"execledger/pkg/platform/httputil"
	"execledger/pkg/requestcontext"
)

type Service interface {
	Record(ctx context.Context, caller id.Principal, notice service.Notice) events.Event
}

// Handler serves POST /v1/policies/{policyID}/expenditures.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/policies/{policyID}/expenditures", h.HandleRecord)
}

// RecordExpenditureRequest carries the notice. Amount is in the smallest
// unit; AmountEther is an alternative decimal form converted to wei.
type RecordExpenditureRequest struct {
	Recipient   string     `json:"recipient"`
	Amount      *id.Amount `json:"amount"`
	AmountEther string     `json:"amount_ether"`
	Description string     `json:"description"`

	amount id.Amount
}

// Validate only resolves the amount; recipient and description are taken as
// given.
func (r *RecordExpenditureRequest) Validate() error {
	switch {
	case r.Amount != nil && r.AmountEther != "":
		return dErrors.New(dErrors.CodeValidation, "amount and amount_ether are mutually exclusive")
	case r.Amount != nil:
		r.amount = *r.Amount
	case r.AmountEther != "":
		parsed, err := id.ParseEther(r.AmountEther)
		if err != nil {
			return err
		}
		r.amount = parsed
	}
	return nil
}

type RecordExpenditureResponse struct {
	EventID  string `json:"event_id"`
	Sequence uint64 `json:"sequence"`
}

func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecordExpenditureRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	event := h.service.Record(ctx, requestcontext.Caller(ctx), service.Notice{
		PolicyID:    policyID,
		Recipient:   id.NewPrincipal(req.Recipient),
		Amount:      req.amount,
		Description: req.Description,
	})
	httputil.WriteJSON(w, http.StatusAccepted, &RecordExpenditureResponse{
		EventID:  event.ID.String(),
		Sequence: event.Sequence,
	})
}
