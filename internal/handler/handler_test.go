package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/config"
	"github.com/popeskul/wa-inbox/internal/gateway"
	"github.com/popeskul/wa-inbox/internal/handler"
	"github.com/popeskul/wa-inbox/internal/middleware"
	"github.com/popeskul/wa-inbox/internal/models"
	"github.com/popeskul/wa-inbox/internal/repository"
	"github.com/popeskul/wa-inbox/internal/scheduler"
	"github.com/popeskul/wa-inbox/internal/service"
	"github.com/popeskul/wa-inbox/internal/service/mocks"
	"github.com/popeskul/wa-inbox/internal/tenant"
)

type fakeSockets struct {
	companyID uuid.UUID
	err       error
}

func (f *fakeSockets) Serve(_ http.ResponseWriter, _ *http.Request, companyID uuid.UUID) error {
	f.companyID = companyID
	return f.err
}

type fixture struct {
	ingestion *mocks.MockIngestionService
	tickets   *mocks.MockTicketService
	scheduler *mocks.MockSchedulerService
	health    *mocks.MockHealthService
	sockets   *fakeSockets
	router    http.Handler
}

func newFixture(t *testing.T, webhook config.WebhookConfig) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		ingestion: mocks.NewMockIngestionService(ctrl),
		tickets:   mocks.NewMockTicketService(ctrl),
		scheduler: mocks.NewMockSchedulerService(ctrl),
		health:    mocks.NewMockHealthService(ctrl),
		sockets:   &fakeSockets{},
	}

	svc := &service.Service{
		Ingestion: f.ingestion,
		Tickets:   f.tickets,
		Scheduler: f.scheduler,
		Health:    f.health,
	}
	f.router = handler.NewHandler(svc, f.sockets, webhook, zap.NewNop()).Routes()
	return f
}

var (
	companyID = uuid.MustParse("5b0c3c1e-3f7a-4a53-9d3e-0b7f1b2f6a10")
	adminID   = uuid.MustParse("1d8e0a55-6a0e-4f4e-a3b5-2b1f7c9d3e21")
)

func (f *fixture) do(method, target, body string, role tenant.Role) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if role != "" {
		req.Header.Set(middleware.CompanyIDHeader, companyID.String())
		req.Header.Set(middleware.UserIDHeader, adminID.String())
		req.Header.Set(middleware.UserRoleHeader, string(role))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var body middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandler_Webhook(t *testing.T) {
	connectionID := uuid.New()

	tests := []struct {
		name       string
		secret     string
		maxBody    int64
		target     string
		header     string
		body       string
		expect     func(*mocks.MockIngestionService)
		wantStatus int
		wantCode   string
	}{
		{
			name:   "acknowledges and enqueues",
			target: "/api/whatsapp/webhook",
			body:   `{"event":"messages.upsert"}`,
			expect: func(m *mocks.MockIngestionService) {
				m.EXPECT().Enqueue([]byte(`{"event":"messages.upsert"}`), (*uuid.UUID)(nil))
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "connection from path",
			target: "/api/whatsapp/webhook/" + connectionID.String(),
			body:   `{}`,
			expect: func(m *mocks.MockIngestionService) {
				m.EXPECT().Enqueue([]byte(`{}`), &connectionID)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid connection id",
			target:     "/api/whatsapp/webhook/not-a-uuid",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   middleware.ErrorCodeValidation,
		},
		{
			name:   "secret in header",
			secret: "s3cret",
			target: "/api/whatsapp/webhook",
			header: "s3cret",
			body:   `{}`,
			expect: func(m *mocks.MockIngestionService) {
				m.EXPECT().Enqueue(gomock.Any(), gomock.Any())
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "secret in query",
			secret: "s3cret",
			target: "/api/whatsapp/webhook?token=s3cret",
			body:   `{}`,
			expect: func(m *mocks.MockIngestionService) {
				m.EXPECT().Enqueue(gomock.Any(), gomock.Any())
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong secret",
			secret:     "s3cret",
			target:     "/api/whatsapp/webhook",
			header:     "guess",
			body:       `{}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   middleware.ErrorCodeUnauthenticated,
		},
		{
			name:       "body too large",
			maxBody:    8,
			target:     "/api/whatsapp/webhook",
			body:       `{"event":"messages.upsert"}`,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   middleware.ErrorCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.WebhookConfig{Secret: tt.secret, MaxBodyBytes: tt.maxBody})
			if tt.expect != nil {
				tt.expect(f.ingestion)
			}

			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			if tt.header != "" {
				req.Header.Set(handler.WebhookSecretHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Error)
				return
			}
			assert.JSONEq(t, `{"success":true}`, rec.Body.String())
		})
	}
}

func TestHandler_RequiresIdentity(t *testing.T) {
	f := newFixture(t, config.WebhookConfig{})

	for _, target := range []string{"/api/tickets", "/api/tickets/stats", "/api/ws"} {
		rec := f.do(http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestHandler_ListTickets(t *testing.T) {
	clientID := uuid.New()

	tests := []struct {
		name       string
		query      string
		expect     func(*mocks.MockTicketService)
		wantStatus int
	}{
		{
			name:  "all filters",
			query: "?status=waiting&clientId=" + clientID.String() + "&protocolNumber=20261015000001&dateFrom=2026-10-01&dateTo=2026-10-15&page=2&limit=10",
			expect: func(m *mocks.MockTicketService) {
				m.EXPECT().List(gomock.Any(), gomock.Any()).
					DoAndReturn(func(ctx context.Context, f models.ConversationFilter) (*service.TicketList, error) {
						id, ok := tenant.IdentityFrom(ctx)
						require.True(t, ok)
						assert.Equal(t, companyID, id.CompanyID)

						require.NotNil(t, f.Status)
						assert.Equal(t, models.ConversationStatusWaiting, *f.Status)
						assert.Equal(t, clientID, *f.ClientID)
						assert.Nil(t, f.AssignedTo)
						assert.Equal(t, "20261015000001", f.ProtocolNumber)
						assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), *f.DateFrom)
						assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), *f.DateTo)
						assert.Equal(t, 2, f.Page)
						assert.Equal(t, 10, f.Limit)

						return &service.TicketList{
							Tickets:    []*models.Ticket{},
							Pagination: service.Pagination{Page: 2, Limit: 10, Total: 11, TotalPages: 2},
						}, nil
					})
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown status",
			query:      "?status=archived",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad uuid",
			query:      "?assignedTo=me",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad date",
			query:      "?dateFrom=15/10/2026",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad page",
			query:      "?page=0",
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "service failure",
			expect: func(m *mocks.MockTicketService) {
				m.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.WebhookConfig{})
			if tt.expect != nil {
				tt.expect(f.tickets)
			}

			rec := f.do(http.MethodGet, "/api/tickets"+tt.query, "", tenant.RoleAdmin)
			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus == http.StatusOK {
				var body service.TicketList
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, 2, body.Pagination.TotalPages)
			}
		})
	}
}

func TestHandler_TicketStats(t *testing.T) {
	f := newFixture(t, config.WebhookConfig{})
	f.tickets.EXPECT().Stats(gomock.Any()).Return(&service.TicketStats{All: 6, Open: 2, InProgress: 2, Closed: 1, Canceled: 1}, nil)

	rec := f.do(http.MethodGet, "/api/tickets/stats", "", tenant.RoleSupervisor)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"all":6,"open":2,"in_progress":2,"closed":1,"canceled":1}`, rec.Body.String())
}

func TestHandler_OpenTicket(t *testing.T) {
	clientID := uuid.New()

	tests := []struct {
		name       string
		body       string
		err        error
		call       bool
		wantStatus int
		wantCode   string
	}{
		{name: "created", body: fmt.Sprintf(`{"clientId":%q}`, clientID), call: true, wantStatus: http.StatusCreated},
		{name: "already open", body: fmt.Sprintf(`{"clientId":%q}`, clientID), call: true, err: fmt.Errorf("open: %w", repository.ErrConflict), wantStatus: http.StatusConflict, wantCode: middleware.ErrorCodeConflict},
		{name: "unknown client", body: fmt.Sprintf(`{"clientId":%q}`, clientID), call: true, err: repository.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: middleware.ErrorCodeNotFound},
		{name: "missing client", body: `{}`, wantStatus: http.StatusBadRequest, wantCode: middleware.ErrorCodeValidation},
		{name: "malformed json", body: `{"clientId":`, wantStatus: http.StatusBadRequest, wantCode: middleware.ErrorCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.WebhookConfig{})
			if tt.call {
				var conv *models.Conversation
				if tt.err == nil {
					conv = &models.Conversation{ID: uuid.New(), ClientID: clientID, Status: models.ConversationStatusInProgress}
				}
				f.tickets.EXPECT().Open(gomock.Any(), clientID).Return(conv, tt.err)
			}

			rec := f.do(http.MethodPost, "/api/tickets", tt.body, tenant.RoleAgent)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Error)
			}
		})
	}
}

func TestHandler_TicketTransitions(t *testing.T) {
	id := uuid.New()
	agentID := uuid.New()
	ok := &models.Conversation{ID: id, Status: models.ConversationStatusInProgress}

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		expect     func(*mocks.MockTicketService)
		wantStatus int
		wantCode   string
	}{
		{
			name:   "start",
			method: http.MethodPut,
			path:   "/start",
			expect: func(m *mocks.MockTicketService) {
				m.EXPECT().Start(gomock.Any(), id).Return(ok, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "start taken by another agent",
			method: http.MethodPut,
			path:   "/start",
			expect: func(m *mocks.MockTicketService) {
				m.EXPECT().Start(gomock.Any(), id).Return(nil, service.ErrForbidden)
			},
			wantStatus: http.StatusForbidden,
			wantCode:   middleware.ErrorCodeForbidden,
		},
		{
			name:   "assign",
			method: http.MethodPut,
			path:   "/assign",
			body:   fmt.Sprintf(`{"agentId":%q}`, agentID),
			expect: func(m *mocks.MockTicketService) {
				m.EXPECT().Assign(gomock.Any(), id, agentID).Return(ok, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "assign without agent",
			method:     http.MethodPut,
			path:       "/assign",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   middleware.ErrorCodeValidation,
		},
		{
			name:   "finish",
			method: http.MethodPut,
			path:   "/finish",
			expect: func(m *mocks.MockTicketService) {
				m.EXPECT().Finish(gomock.Any(), id).Return(ok, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "finish already finished",
			method: http.MethodPut,
			path:   "/finish",
			expect: func(m *mocks.MockTicketService) {
				m.EXPECT().Finish(gomock.Any(), id).Return(nil, fmt.Errorf("finish: %w", service.ErrInvalidTransition))
			},
			wantStatus: http.StatusConflict,
			wantCode:   middleware.ErrorCodeConflict,
		},
		{
			name:   "cancel unknown ticket",
			method: http.MethodPut,
			path:   "/cancel",
			expect: func(m *mocks.MockTicketService) {
				m.EXPECT().Cancel(gomock.Any(), id).Return(nil, repository.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
			wantCode:   middleware.ErrorCodeNotFound,
		},
		{
			name:   "priority",
			method: http.MethodPatch,
			path:   "/priority",
			body:   `{"priority":"urgent"}`,
			expect: func(m *mocks.MockTicketService) {
				m.EXPECT().UpdatePriority(gomock.Any(), id, models.PriorityUrgent).Return(ok, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown priority",
			method:     http.MethodPatch,
			path:       "/priority",
			body:       `{"priority":"whenever"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   middleware.ErrorCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.WebhookConfig{})
			if tt.expect != nil {
				tt.expect(f.tickets)
			}

			rec := f.do(tt.method, "/api/tickets/"+id.String()+tt.path, tt.body, tenant.RoleAgent)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Error)
			}
		})
	}
}

func TestHandler_InvalidTicketID(t *testing.T) {
	f := newFixture(t, config.WebhookConfig{})

	rec := f.do(http.MethodPut, "/api/tickets/42/start", "", tenant.RoleAgent)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, middleware.ErrorCodeValidation, decodeError(t, rec).Error)
}

func TestHandler_TicketMessages(t *testing.T) {
	id := uuid.New()

	t.Run("returns conversation and messages", func(t *testing.T) {
		f := newFixture(t, config.WebhookConfig{})
		f.tickets.EXPECT().Messages(gomock.Any(), id, 50).Return(&service.ConversationMessages{
			Conversation: &models.Conversation{ID: id},
			Messages:     []*models.Message{{ID: uuid.New(), Content: "hi"}},
		}, nil)

		rec := f.do(http.MethodGet, "/api/tickets/"+id.String()+"/messages?limit=50", "", tenant.RoleAgent)

		require.Equal(t, http.StatusOK, rec.Code)
		var body service.ConversationMessages
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, id, body.Conversation.ID)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "hi", body.Messages[0].Content)
	})

	t.Run("other company's ticket", func(t *testing.T) {
		f := newFixture(t, config.WebhookConfig{})
		f.tickets.EXPECT().Messages(gomock.Any(), id, 0).Return(nil, repository.ErrNotFound)

		rec := f.do(http.MethodGet, "/api/tickets/"+id.String()+"/messages", "", tenant.RoleAgent)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		f := newFixture(t, config.WebhookConfig{})

		rec := f.do(http.MethodGet, "/api/tickets/"+id.String()+"/messages?limit=-1", "", tenant.RoleAgent)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_SendMessage(t *testing.T) {
	id := uuid.New()
	templateID := uuid.New()

	tests := []struct {
		name        string
		body        string
		expect      func(*mocks.MockTicketService)
		wantStatus  int
		wantCode    string
		wantDetails any
	}{
		{
			name: "text",
			body: `{"text":"Olá!"}`,
			expect: func(m *mocks.MockTicketService) {
				m.EXPECT().SendMessage(gomock.Any(), id, service.SendMessageInput{Text: "Olá!"}).
					Return(&models.Message{ID: uuid.New(), Content: "Olá!"}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "template",
			body: fmt.Sprintf(`{"templateId":%q}`, templateID),
			expect: func(m *mocks.MockTicketService) {
				m.EXPECT().SendMessage(gomock.Any(), id, service.SendMessageInput{TemplateID: &templateID}).
					Return(&models.Message{ID: uuid.New()}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "neither text nor template",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   middleware.ErrorCodeValidation,
		},
		{
			name: "blank after rendering",
			body: `{"text":"   "}`,
			expect: func(m *mocks.MockTicketService) {
				m.EXPECT().SendMessage(gomock.Any(), id, gomock.Any()).
					Return(nil, fmt.Errorf("%w: message text is empty", service.ErrValidation))
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   middleware.ErrorCodeValidation,
		},
		{
			name: "gateway rejects",
			body: `{"text":"hi"}`,
			expect: func(m *mocks.MockTicketService) {
				m.EXPECT().SendMessage(gomock.Any(), id, gomock.Any()).
					Return(nil, fmt.Errorf("send: %w", &gateway.UpstreamError{StatusCode: 400, Body: `{"error":"number not on whatsapp"}`}))
			},
			wantStatus:  http.StatusInternalServerError,
			wantCode:    middleware.ErrorCodeGateway,
			wantDetails: `{"error":"number not on whatsapp"}`,
		},
		{
			name: "gateway circuit open",
			body: `{"text":"hi"}`,
			expect: func(m *mocks.MockTicketService) {
				m.EXPECT().SendMessage(gomock.Any(), id, gomock.Any()).Return(nil, gateway.ErrCircuitOpen)
			},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "GATEWAY_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.WebhookConfig{})
			if tt.expect != nil {
				tt.expect(f.tickets)
			}

			rec := f.do(http.MethodPost, "/api/tickets/"+id.String()+"/messages", tt.body, tenant.RoleAgent)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				body := decodeError(t, rec)
				assert.Equal(t, tt.wantCode, body.Error)
				assert.Equal(t, tt.wantDetails, body.Details)
				assert.False(t, body.Timestamp.IsZero())
			}
		})
	}
}

func TestHandler_WebSocket(t *testing.T) {
	f := newFixture(t, config.WebhookConfig{})

	rec := f.do(http.MethodGet, "/api/ws", "", tenant.RoleAgent)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, companyID, f.sockets.companyID)
}

func TestHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		wantStatus int
	}{
		{name: "healthy", status: service.HealthHealthy, wantStatus: http.StatusOK},
		{name: "degraded", status: service.HealthDegraded, wantStatus: http.StatusOK},
		{name: "unhealthy", status: service.HealthUnhealthy, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.WebhookConfig{})
			f.health.EXPECT().GetHealth(gomock.Any()).Return(&service.HealthStatus{
				Status:          tt.status,
				SchedulerStatus: service.StatusRunning,
				DatabaseStatus:  service.StatusConnected,
				RedisStatus:     service.StatusConnected,
			})

			rec := f.do(http.MethodGet, "/health", "", "")

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body["status"])
			assert.Equal(t, service.StatusRunning, body["scheduler_status"])
			assert.NotEmpty(t, body["timestamp"])
		})
	}
}

func TestHandler_Scheduler(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		role       tenant.Role
		expect     func(*mocks.MockSchedulerService)
		wantStatus int
		wantCode   string
	}{
		{
			name: "start",
			path: "/api/scheduler/start",
			role: tenant.RoleAdmin,
			expect: func(m *mocks.MockSchedulerService) {
				m.EXPECT().Start().Return(nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "start while running",
			path: "/api/scheduler/start",
			role: tenant.RoleAdmin,
			expect: func(m *mocks.MockSchedulerService) {
				m.EXPECT().Start().Return(scheduler.ErrSchedulerAlreadyRunning)
			},
			wantStatus: http.StatusConflict,
			wantCode:   "SCHEDULER_ALREADY_RUNNING",
		},
		{
			name: "stop",
			path: "/api/scheduler/stop",
			role: tenant.RoleAdmin,
			expect: func(m *mocks.MockSchedulerService) {
				m.EXPECT().Stop().Return(nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "stop while stopped",
			path: "/api/scheduler/stop",
			role: tenant.RoleAdmin,
			expect: func(m *mocks.MockSchedulerService) {
				m.EXPECT().Stop().Return(scheduler.ErrSchedulerNotRunning)
			},
			wantStatus: http.StatusConflict,
			wantCode:   "SCHEDULER_NOT_RUNNING",
		},
		{
			name:       "agents may not",
			path:       "/api/scheduler/start",
			role:       tenant.RoleAgent,
			wantStatus: http.StatusForbidden,
			wantCode:   middleware.ErrorCodeForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.WebhookConfig{})
			if tt.expect != nil {
				tt.expect(f.scheduler)
			}

			rec := f.do(http.MethodPost, tt.path, "", tt.role)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Error)
			}
		})
	}
}
