package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"execledger/internal/access"
	"execledger/internal/events"
	"execledger/internal/policy/service"
	"execledger/internal/policy/store"
	id "execledger/pkg/domain"
	"execledger/pkg/platform/httputil"
	"execledger/pkg/requestcontext"
)

const oracle = id.Principal("0x00000000000000000000000000000000000000aa")

type HandlerSuite struct {
	suite.Suite
	router   chi.Router
	recorder *events.Recorder
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := events.NewNotifier()
	s.recorder = events.NewRecorder(16)
	notifier.Subscribe(s.recorder)
	svc := service.New(store.NewInMemoryPolicyStore(), access.NewGate(oracle), notifier, service.WithLogger(logger))

	s.router = chi.NewRouter()
	// Stand-in for the auth middleware: X-Test-Caller becomes the caller.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if caller := r.Header.Get("X-Test-Caller"); caller != "" {
				ctx = requestcontext.WithCaller(ctx, id.NewPrincipal(caller))
			}
			ctx = requestcontext.WithTime(ctx, time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	New(svc, logger).Register(s.router)
}

func (s *HandlerSuite) do(method, path, caller, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequestWithContext(context.Background(), method, path, reader)
	if caller != "" {
		req.Header.Set("X-Test-Caller", caller)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *HandlerSuite) create(content string) uint64 {
	rr := s.do(http.MethodPost, "/v1/policies", string(oracle), `{"content":"`+content+`"}`)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	var resp CreatePolicyResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.PolicyID
}

func (s *HandlerSuite) TestCreateAndGet() {
	s.Equal(uint64(0), s.create("H1"))
	s.Equal(uint64(1), s.create("H2"))

	rr := s.do(http.MethodGet, "/v1/policies/0", "", "")
	s.Require().Equal(http.StatusOK, rr.Code)
	var got PolicyResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &got))
	s.Equal(id.MerkleRootFromText("H1").String(), got.MerkleRoot)
	s.Equal(string(oracle), got.Initiator)
	s.Equal(time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC), got.Timestamp)

	rr = s.do(http.MethodGet, "/v1/policies/count", "", "")
	s.Require().Equal(http.StatusOK, rr.Code)
	s.JSONEq(`{"total":2}`, rr.Body.String())
}

func (s *HandlerSuite) TestCreateWithExplicitRoot() {
	root := id.MerkleRootFromText("explicit").String()
	rr := s.do(http.MethodPost, "/v1/policies", string(oracle), `{"merkle_root":"`+root+`"}`)
	s.Require().Equal(http.StatusCreated, rr.Code)
	s.Equal("/v1/policies/0", rr.Header().Get("Location"))
}

func (s *HandlerSuite) TestCreateErrors() {
	cases := []struct {
		name   string
		caller string
		body   string
		status int
		code   string
	}{
		{"anonymous", "", `{"content":"x"}`, http.StatusUnauthorized, "unauthenticated"},
		{"not the oracle", "0x00000000000000000000000000000000000000bb", `{"content":"x"}`, http.StatusForbidden, "unauthorized"},
		{"missing root", string(oracle), `{}`, http.StatusBadRequest, "validation_error"},
		{"both root and content", string(oracle), `{"merkle_root":"0x00","content":"x"}`, http.StatusBadRequest, "validation_error"},
		{"bad hex", string(oracle), `{"merkle_root":"0xzz"}`, http.StatusBadRequest, "invalid_input"},
		{"unknown field", string(oracle), `{"root":"x"}`, http.StatusBadRequest, "bad_request"},
		{"empty body", string(oracle), ``, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			rr := s.do(http.MethodPost, "/v1/policies", tc.caller, tc.body)
			s.Equal(tc.status, rr.Code)
			var resp httputil.ErrorResponse
			s.Require().NoError(json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&resp))
			s.Equal(tc.code, resp.Error)
		})
	}

	rr := s.do(http.MethodGet, "/v1/policies/count", "", "")
	s.JSONEq(`{"total":0}`, rr.Body.String())
	s.Zero(s.recorder.Len())
}

func (s *HandlerSuite) TestGetErrors() {
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/v1/policies/0", "", "").Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/v1/policies/-1", "", "").Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/v1/policies/abc", "", "").Code)
}

func (s *HandlerSuite) TestList() {
	for _, c := range []string{"a", "b", "c"} {
		s.create(c)
	}
	rr := s.do(http.MethodGet, "/v1/policies?offset=1&limit=1", "", "")
	s.Require().Equal(http.StatusOK, rr.Code)
	var resp ListPoliciesResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.Equal(uint64(3), resp.Total)
	s.Equal(uint64(1), resp.Offset)
	s.Require().Len(resp.Policies, 1)
	s.Equal(uint64(1), resp.Policies[0].PolicyID)

	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/v1/policies?limit=x", "", "").Code)
}
