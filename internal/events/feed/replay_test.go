package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execledger/internal/events"
)

func TestReplayHandler(t *testing.T) {
	notifier := events.NewNotifier()
	recorder := events.NewRecorder(10)
	notifier.Subscribe(recorder)
	for i := 0; i < 4; i++ {
		notifier.Notify(context.Background(), events.DiagnosticLogged{PolicyID: 1, LogIndex: 0, Message: "m"})
	}
	h := NewReplayHandler(recorder)

	get := func(query string) (*httptest.ResponseRecorder, ReplayResponse) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/events"+query, nil))
		var resp ReplayResponse
		if rr.Code == http.StatusOK {
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		}
		return rr, resp
	}

	rr, resp := get("?after=1&limit=2")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, resp.Events, 2)
	assert.Equal(t, uint64(2), resp.Events[0].Sequence)
	assert.Equal(t, uint64(3), resp.LastSequence)

	_, resp = get("")
	assert.Len(t, resp.Events, 4)

	_, resp = get("?after=4")
	assert.Empty(t, resp.Events)
	assert.Equal(t, uint64(4), resp.LastSequence, "cursor is echoed when nothing is new")

	rr, _ = get("?after=x")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
