package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"docexchange/internal/requests/handler/mocks"
	"docexchange/internal/requests/models"
	"docexchange/internal/requests/service"
	"docexchange/internal/sharelink"
	dErrors "docexchange/pkg/domain-errors"
	audit "docexchange/pkg/platform/audit"
	"docexchange/pkg/requestcontext"
	"docexchange/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/requests-mocks.go -package=mocks Service
type RequestHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	now     time.Time
}

func TestRequestHandlerSuite(t *testing.T) {
	suite.Run(t, new(RequestHandlerSuite))
}

func (s *RequestHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.now = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	s.router = chi.NewRouter()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), s.now)))
		})
	})
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *RequestHandlerSuite) do(method, path string, body any) *http.Request {
	return testutil.AsUser(testutil.NewJSONRequest(s.T(), method, path, body), "org-1")
}

func (s *RequestHandlerSuite) request(status models.Status, expiresIn time.Duration) *models.DocumentRequest {
	created := s.now.Add(-time.Hour)
	return &models.DocumentRequest{
		ID:                 models.NewRequestID(),
		CivilID:            "C1",
		RequestedDocuments: []string{"passport"},
		RequestedBy:        "org-1",
		Status:             status,
		CreatedAt:          created,
		ExpiresAt:          s.now.Add(expiresIn),
		LastUpdatedAt:      created,
	}
}

func (s *RequestHandlerSuite) TestCreate() {
	s.Run("created with default ttl", func() {
		req := s.request(models.StatusPending, time.Hour)
		s.service.EXPECT().CreateRequest(gomock.Any(), service.CreateParams{
			CivilID:            "C1",
			RequestedDocuments: []string{"passport"},
		}).Return(req, nil)

		rr := testutil.DoRequest(s.router, s.do(http.MethodPost, "/requests", map[string]any{
			"civil_id":            " C1 ",
			"requested_documents": []string{"passport"},
		}))
		s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
		s.Equal("/requests/"+req.ID.String(), rr.Header().Get("Location"))
		body := testutil.DecodeMap(s.T(), rr)
		s.Equal(req.ID.String(), body["id"])
		s.Equal("pending", body["status"])
		s.Equal(false, body["expired"])
	})

	s.Run("ttl_seconds is passed as a duration", func() {
		req := s.request(models.StatusPending, time.Hour)
		s.service.EXPECT().CreateRequest(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p service.CreateParams) (*models.DocumentRequest, error) {
				s.Equal(90*time.Second, p.TTL)
				return req, nil
			})
		rr := testutil.DoRequest(s.router, s.do(http.MethodPost, "/requests", map[string]any{
			"civil_id":            "C1",
			"requested_documents": []string{"passport"},
			"ttl_seconds":         90,
		}))
		s.Equal(http.StatusCreated, rr.Code)
	})

	s.Run("rejected before the service", func() {
		bodies := map[string]map[string]any{
			"missing civil id":  {"requested_documents": []string{"passport"}},
			"missing documents": {"civil_id": "C1"},
			"zero ttl":          {"civil_id": "C1", "requested_documents": []string{"passport"}, "ttl_seconds": 0},
			"overflowing ttl":   {"civil_id": "C1", "requested_documents": []string{"passport"}, "ttl_seconds": int64(18446744074)},
			"max int64 ttl":     {"civil_id": "C1", "requested_documents": []string{"passport"}, "ttl_seconds": int64(math.MaxInt64)},
		}
		for name, body := range bodies {
			s.Run(name, func() {
				rr := testutil.DoRequest(s.router, s.do(http.MethodPost, "/requests", body))
				testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
			})
		}
	})

	s.Run("malformed json", func() {
		rr := testutil.DoRequest(s.router, testutil.AsUser(testutil.NewRawRequest(http.MethodPost, "/requests", "{"), "org-1"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *RequestHandlerSuite) TestGet() {
	s.Run("reports derived expiry", func() {
		req := s.request(models.StatusPending, -time.Minute)
		s.service.EXPECT().GetRequest(gomock.Any(), req.ID).Return(req, nil)

		rr := testutil.DoRequest(s.router, s.do(http.MethodGet, "/requests/"+req.ID.String(), nil))
		s.Require().Equal(http.StatusOK, rr.Code)
		body := testutil.DecodeMap(s.T(), rr)
		s.Equal("pending", body["status"])
		s.Equal(true, body["expired"])
		s.Equal("org-1", body["requested_by"])
	})

	s.Run("malformed id is not found", func() {
		rr := testutil.DoRequest(s.router, s.do(http.MethodGet, "/requests/not-a-uuid", nil))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("store failure hides detail", func() {
		id := models.NewRequestID()
		s.service.EXPECT().GetRequest(gomock.Any(), id).
			Return(nil, dErrors.Wrap(errors.New("pq: connection reset"), dErrors.CodeInternal, "failed to get request"))
		rr := testutil.DoRequest(s.router, s.do(http.MethodGet, "/requests/"+id.String(), nil))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "internal_error")
		s.NotContains(rr.Body.String(), "pq")
	})
}

func (s *RequestHandlerSuite) TestList() {
	s.Run("filters are parsed", func() {
		a := s.request(models.StatusAccepted, time.Hour)
		s.service.EXPECT().ListRequests(gomock.Any(), models.ListFilter{Status: models.StatusAccepted, CivilID: "C1"}).
			Return([]*models.DocumentRequest{a}, nil)

		rr := testutil.DoRequest(s.router, s.do(http.MethodGet, "/requests?status=Accepted&civil_id=C1", nil))
		s.Require().Equal(http.StatusOK, rr.Code)
		body := testutil.DecodeMap(s.T(), rr)
		list, ok := body["requests"].([]any)
		s.Require().True(ok)
		s.Len(list, 1)
	})

	s.Run("empty list is an array", func() {
		s.service.EXPECT().ListRequests(gomock.Any(), models.ListFilter{}).Return(nil, nil)
		rr := testutil.DoRequest(s.router, s.do(http.MethodGet, "/requests", nil))
		s.Require().Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"requests":[]}`, rr.Body.String())
	})

	s.Run("unknown status filter", func() {
		rr := testutil.DoRequest(s.router, s.do(http.MethodGet, "/requests?status=archived", nil))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *RequestHandlerSuite) TestUpdateStatus() {
	s.Run("ok", func() {
		req := s.request(models.StatusAccepted, time.Hour)
		s.service.EXPECT().UpdateStatus(gomock.Any(), req.ID, "accepted").Return(req, nil)
		rr := testutil.DoRequest(s.router, s.do(http.MethodPost, "/requests/"+req.ID.String()+"/status", map[string]string{"status": "accepted"}))
		s.Require().Equal(http.StatusOK, rr.Code)
		s.Equal("accepted", testutil.DecodeMap(s.T(), rr)["status"])
	})

	s.Run("invalid transition is 409", func() {
		id := models.NewRequestID()
		s.service.EXPECT().UpdateStatus(gomock.Any(), id, "pending").
			Return(nil, dErrors.New(dErrors.CodeInvalidTransition, "cannot transition from accepted to pending"))
		rr := testutil.DoRequest(s.router, s.do(http.MethodPost, "/requests/"+id.String()+"/status", map[string]string{"status": "pending"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "invalid_transition")
	})

	s.Run("missing status", func() {
		id := models.NewRequestID()
		rr := testutil.DoRequest(s.router, s.do(http.MethodPost, "/requests/"+id.String()+"/status", map[string]string{}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *RequestHandlerSuite) TestDelete() {
	s.Run("always 204", func() {
		id := models.NewRequestID()
		s.service.EXPECT().DeleteRequest(gomock.Any(), id).Return(nil).Times(2)
		for range 2 {
			rr := testutil.DoRequest(s.router, s.do(http.MethodDelete, "/requests/"+id.String(), nil))
			s.Equal(http.StatusNoContent, rr.Code)
		}
	})

	s.Run("malformed id is still 204", func() {
		rr := testutil.DoRequest(s.router, s.do(http.MethodDelete, "/requests/nope", nil))
		s.Equal(http.StatusNoContent, rr.Code)
	})
}

func (s *RequestHandlerSuite) TestGenerateShareLink() {
	s.Run("created", func() {
		id := models.NewRequestID()
		expires := s.now.Add(72 * time.Hour)
		s.service.EXPECT().GenerateShareLink(gomock.Any(), id).Return(&sharelink.Issued{
			Token:     "tok.secret",
			TokenID:   "tok",
			URL:       "http://localhost:8080/share/tok.secret",
			RequestID: id,
			ExpiresAt: expires,
		}, nil)

		rr := testutil.DoRequest(s.router, s.do(http.MethodPost, "/requests/"+id.String()+"/share-links", nil))
		s.Require().Equal(http.StatusCreated, rr.Code)
		body := testutil.DecodeMap(s.T(), rr)
		s.Equal("tok.secret", body["token"])
		s.Equal("http://localhost:8080/share/tok.secret", body["url"])
		s.Equal(expires.Format(time.RFC3339), body["expires_at"])
	})

	s.Run("unknown request", func() {
		id := models.NewRequestID()
		s.service.EXPECT().GenerateShareLink(gomock.Any(), id).Return(nil, dErrors.New(dErrors.CodeNotFound, "request not found"))
		rr := testutil.DoRequest(s.router, s.do(http.MethodPost, "/requests/"+id.String()+"/share-links", nil))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *RequestHandlerSuite) TestAuditTrail() {
	s.Run("lists events", func() {
		id := models.NewRequestID()
		s.service.EXPECT().AuditTrail(gomock.Any(), id).Return([]audit.Event{
			{Action: audit.ActionRequestCreated, DocumentRequestID: id.String(), ActorID: "org-1", Timestamp: s.now},
			{Action: audit.ActionShareLinkViewed, DocumentRequestID: id.String(), TokenID: "tok", Timestamp: s.now},
		}, nil)

		rr := testutil.DoRequest(s.router, s.do(http.MethodGet, "/requests/"+id.String()+"/audit", nil))
		s.Require().Equal(http.StatusOK, rr.Code)
		events := testutil.DecodeMap(s.T(), rr)["events"].([]any)
		s.Require().Len(events, 2)
		s.Equal("request_created", events[0].(map[string]any)["action"])
		s.Equal("tok", events[1].(map[string]any)["token_id"])
	})

	s.Run("unknown request", func() {
		id := models.NewRequestID()
		s.service.EXPECT().AuditTrail(gomock.Any(), id).Return(nil, dErrors.New(dErrors.CodeNotFound, "request not found"))
		rr := testutil.DoRequest(s.router, s.do(http.MethodGet, "/requests/"+id.String()+"/audit", nil))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}
