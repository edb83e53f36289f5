package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/config"
	"github.com/popeskul/wa-inbox/internal/gateway"
	"github.com/popeskul/wa-inbox/internal/models"
)

func newClient(baseURL string) *gateway.HTTPClient {
	cfg := &config.GatewayConfig{
		BaseURL:       baseURL,
		APIKey:        "global-key",
		WhapiURL:      baseURL,
		SendTimeout:   5,
		StatusTimeout: 5,
		CircuitBreaker: config.CircuitBreakerConfig{
			MaxRequests:      3,
			Interval:         60,
			Timeout:          60,
			FailureRatio:     0.6,
			ConsecutiveFails: 5,
		},
	}
	return gateway.NewHTTPClient(cfg, gateway.NewCircuitBreaker(&cfg.CircuitBreaker, zap.NewNop()), zap.NewNop())
}

func evolutionConn(token string) *models.Connection {
	return &models.Connection{
		ID:           uuid.New(),
		Provider:     models.ProviderEvolution,
		InstanceName: "acme main",
		Token:        token,
	}
}

func TestHTTPClient_EvolutionSendText(t *testing.T) {
	var gotBody map[string]string
	var gotKey, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotKey = r.Header.Get("apikey")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"key":{"remoteJid":"5511999998888@s.whatsapp.net","fromMe":true,"id":"BAE5F00D"},"status":"PENDING"}`))
	}))
	defer srv.Close()

	id, err := newClient(srv.URL).SendText(context.Background(), evolutionConn("instance-token"), "5511999998888", "Olá")

	require.NoError(t, err)
	assert.Equal(t, "BAE5F00D", id)
	assert.Equal(t, "/message/sendText/acme%20main", gotPath)
	assert.Equal(t, "instance-token", gotKey)
	assert.Equal(t, map[string]string{"number": "5511999998888", "text": "Olá"}, gotBody)
}

func TestHTTPClient_EvolutionFallsBackToGlobalKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("apikey")
		_, _ = w.Write([]byte(`{"key":{"id":"X"}}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).SendText(context.Background(), evolutionConn(""), "5511999998888", "oi")

	require.NoError(t, err)
	assert.Equal(t, "global-key", gotKey)
}

func TestHTTPClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":400,"error":"Bad Request","response":{"message":[{"exists":false}]}}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).SendText(context.Background(), evolutionConn("t"), "5511999998888", "oi")

	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrUpstream)

	var upstream *gateway.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusBadRequest, upstream.StatusCode)
	assert.Contains(t, upstream.Body, `"exists":false`)
}

func TestHTTPClient_WhapiSendText(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"sent":true,"message":{"id":"PsqXn5SAD5v7HRA-wLgZgQ"}}`))
	}))
	defer srv.Close()

	conn := &models.Connection{ID: uuid.New(), Provider: models.ProviderWhapi, Token: "whapi-token"}
	id, err := newClient(srv.URL).SendText(context.Background(), conn, "5511988887777", "Bom dia")

	require.NoError(t, err)
	assert.Equal(t, "PsqXn5SAD5v7HRA-wLgZgQ", id)
	assert.Equal(t, "/messages/text", gotPath)
	assert.Equal(t, "Bearer whapi-token", gotAuth)
	assert.Equal(t, map[string]string{"to": "5511988887777", "body": "Bom dia"}, gotBody)
}

func TestHTTPClient_LegacyCannotSend(t *testing.T) {
	conn := &models.Connection{ID: uuid.New(), Provider: models.ProviderLegacy}

	_, err := newClient("http://127.0.0.1:1").SendText(context.Background(), conn, "5511", "oi")

	assert.ErrorIs(t, err, gateway.ErrUnsupportedProvider)
}

func TestHTTPClient_ConnectionState(t *testing.T) {
	tests := []struct {
		name     string
		provider models.Provider
		response string
		want     models.ConnectionStatus
	}{
		{name: "evolution open", provider: models.ProviderEvolution, response: `{"instance":{"instanceName":"acme","state":"open"}}`, want: models.ConnectionStatusConnected},
		{name: "evolution connecting", provider: models.ProviderEvolution, response: `{"instance":{"state":"connecting"}}`, want: models.ConnectionStatusConnecting},
		{name: "evolution closed", provider: models.ProviderEvolution, response: `{"instance":{"state":"close"}}`, want: models.ConnectionStatusDisconnected},
		{name: "whapi authorized", provider: models.ProviderWhapi, response: `{"status":{"code":4,"text":"AUTH"}}`, want: models.ConnectionStatusConnected},
		{name: "whapi qr", provider: models.ProviderWhapi, response: `{"status":{"code":2,"text":"QR"}}`, want: models.ConnectionStatusConnecting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			conn := &models.Connection{ID: uuid.New(), Provider: tt.provider, InstanceName: "acme", Token: "t"}
			state, err := newClient(srv.URL).ConnectionState(context.Background(), conn)

			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}
}
