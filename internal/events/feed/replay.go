package feed

import (
	"net/http"
	"strconv"

	"execledger/internal/events"
	dErrors "execledger/pkg/domain-errors"
	"execledger/pkg/platform/httputil"
)

const maxReplayPage = 500

// ReplayResponse is a page of retained events.
type ReplayResponse struct {
	Events       []events.Event `json:"events"`
	LastSequence uint64         `json:"last_sequence"`
}

// ReplayHandler serves GET /v1/events?after=N&limit=M from the in-memory
// retention window. Only the most recent events are retained, so a client
// that falls too far behind sees a gap between its cursor and the first
// sequence returned.
type ReplayHandler struct {
	replay Replayer
}

func NewReplayHandler(replay Replayer) *ReplayHandler {
	return &ReplayHandler{replay: replay}
}

func (h *ReplayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	after, err := uintParam(r, "after", 0)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := uintParam(r, "limit", maxReplayPage)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if limit == 0 || limit > maxReplayPage {
		limit = maxReplayPage
	}

	page := h.replay.Since(after)
	if uint64(len(page)) > limit {
		page = page[:limit]
	}
	resp := ReplayResponse{Events: page, LastSequence: after}
	if resp.Events == nil {
		resp.Events = []events.Event{}
	}
	if n := len(page); n > 0 {
		resp.LastSequence = page[n-1].Sequence
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func uintParam(r *http.Request, name string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, name+" must be a non-negative integer")
	}
	return v, nil
}
