package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	jwttoken "docexchange/internal/jwt_token"
	"docexchange/internal/notification"
	notificationhandler "docexchange/internal/notification/handler"
	"docexchange/internal/platform/metrics"
	ratelimit "docexchange/internal/ratelimit/middleware"
	"docexchange/internal/ratelimit/store/bucket"
	requesthandler "docexchange/internal/requests/handler"
	requestservice "docexchange/internal/requests/service"
	requeststore "docexchange/internal/requests/store"
	"docexchange/internal/sharelink"
	sharelinkhandler "docexchange/internal/sharelink/handler"
	linkstore "docexchange/internal/sharelink/store"
	"docexchange/pkg/testutil"
)

type RouterSuite struct {
	suite.Suite
	router  http.Handler
	jwt     *jwttoken.JWTService
	healthy error
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	s.jwt = jwttoken.NewJWTService("router-test-key", "docexchange")
	s.healthy = nil

	requests := requeststore.NewInMemory()
	coord := notification.New(notification.NewMemorySlot(), notification.WithLogger(logger))
	links := sharelink.New(linkstore.NewInMemory(), requests, coord,
		sharelink.WithLogger(logger),
		sharelink.WithHashCost(bcrypt.MinCost),
		sharelink.WithBaseURL("http://docs.test"),
	)
	svc := requestservice.New(requests, links, coord, requestservice.WithLogger(logger))

	s.router = NewRouter(Deps{
		Logger:        logger,
		Metrics:       metrics.NewWithRegisterer(reg),
		Gatherer:      reg,
		Validator:     s.jwt,
		Requests:      requesthandler.New(svc, logger),
		ShareLinks:    sharelinkhandler.New(links, logger),
		Notifications: notificationhandler.New(coord, logger),
		HealthChecks: map[string]HealthCheck{
			"store": func(context.Context) error { return s.healthy },
		},
		ShareRateLimit: ratelimit.New(bucket.NewInMemoryBucketStore(), logger, 20, time.Minute).RateLimit,
	})
}

func (s *RouterSuite) authed(method, path string, body any, user string) *http.Request {
	token, err := s.jwt.GenerateAccessToken(user, time.Hour)
	s.Require().NoError(err)
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func (s *RouterSuite) TestProtectedRoutesRequireBearer() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/requests", nil))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")

	req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/requests", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *RouterSuite) TestShareFlowEndToEnd() {
	rr := testutil.DoRequest(s.router, s.authed(http.MethodPost, "/requests", map[string]any{
		"civil_id":            "C1",
		"requested_documents": []string{"passport"},
	}, "org-1"))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	s.NotEmpty(rr.Header().Get("X-Request-ID"))
	id := testutil.DecodeMap(s.T(), rr)["id"].(string)

	rr = testutil.DoRequest(s.router, s.authed(http.MethodGet, "/notifications/pending", nil, "org-1"))
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal(id, testutil.DecodeMap(s.T(), rr)["request_id"])
	rr = testutil.DoRequest(s.router, s.authed(http.MethodGet, "/notifications/pending", nil, "org-1"))
	s.Equal(http.StatusNoContent, rr.Code, "slot is cleared by the first take")

	rr = testutil.DoRequest(s.router, s.authed(http.MethodPost, "/requests/"+id+"/share-links", nil, "org-1"))
	s.Require().Equal(http.StatusCreated, rr.Code)
	link := testutil.DecodeMap(s.T(), rr)
	token := link["token"].(string)
	s.True(strings.HasPrefix(link["url"].(string), "http://docs.test/share/"))

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/share/"+token, nil))
	s.Require().Equal(http.StatusOK, rr.Code)
	view := testutil.DecodeMap(s.T(), rr)
	s.Equal("C1", view["civil_id"])
	s.NotContains(view, "status")
	s.NotContains(view, "requested_by")

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/share/"+token+"/decision", map[string]string{"decision": "accepted"}))
	s.Require().Equal(http.StatusAccepted, rr.Code)

	rr = testutil.DoRequest(s.router, s.authed(http.MethodGet, "/notifications/response", nil, "org-1"))
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal("accepted", testutil.DecodeMap(s.T(), rr)["response"])

	rr = testutil.DoRequest(s.router, s.authed(http.MethodPost, "/requests/"+id+"/status", map[string]string{"status": "accepted"}, "org-1"))
	s.Require().Equal(http.StatusOK, rr.Code)

	rr = testutil.DoRequest(s.router, s.authed(http.MethodDelete, "/requests/"+id, nil, "org-1"))
	s.Equal(http.StatusNoContent, rr.Code)
	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/share/"+token, nil))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *RouterSuite) TestShareRoutesAreRateLimited() {
	var last int
	for range 21 {
		req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/share/abc.def", nil)
		req.RemoteAddr = "192.0.2.10:4711"
		last = testutil.DoRequest(s.router, req).Code
	}
	s.Equal(http.StatusTooManyRequests, last)

	rr := testutil.DoRequest(s.router, s.authed(http.MethodGet, "/requests", nil, "org-1"))
	s.Equal(http.StatusOK, rr.Code, "protected routes are not limited")
}

func (s *RouterSuite) TestHealthz() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/healthz", nil))
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal("ok", testutil.DecodeMap(s.T(), rr)["status"])

	s.healthy = errors.New("down")
	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusServiceUnavailable, rr.Code)
}

func (s *RouterSuite) TestMetricsUseRoutePatterns() {
	testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/share/abc.def", nil))

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/metrics", nil))
	s.Require().Equal(http.StatusOK, rr.Code)
	body := rr.Body.String()
	s.Contains(body, `route="/share/{token}"`)
	s.NotContains(body, "abc.def")
}

func (s *RouterSuite) TestCreateRejectsTTLBeyondMaximum() {
	for _, ttl := range []int64{18446744074, int64((720*time.Hour + time.Second) / time.Second)} {
		rr := testutil.DoRequest(s.router, s.authed(http.MethodPost, "/requests", map[string]any{
			"civil_id":            "C1",
			"requested_documents": []string{"passport"},
			"ttl_seconds":         ttl,
		}, "org-1"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	}

	rr := testutil.DoRequest(s.router, s.authed(http.MethodGet, "/requests", nil, "org-1"))
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Empty(testutil.DecodeMap(s.T(), rr)["requests"])
}
