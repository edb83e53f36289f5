package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/popeskul/wa-inbox/internal/config"
	"github.com/popeskul/wa-inbox/internal/metrics"
	"github.com/popeskul/wa-inbox/internal/models"
)

const maxErrorBody = 4096

// HTTPClient talks to Evolution API and Whapi.Cloud over HTTP. Every call goes through the
// shared circuit breaker.
type HTTPClient struct {
	cfg            *config.GatewayConfig
	httpClient     *http.Client
	circuitBreaker *CircuitBreaker
	logger         *zap.Logger
}

func NewHTTPClient(cfg *config.GatewayConfig, cb *CircuitBreaker, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		cfg:            cfg,
		httpClient:     &http.Client{},
		circuitBreaker: cb,
		logger:         logger,
	}
}

// CircuitBreaker exposes the breaker for health reporting.
func (c *HTTPClient) CircuitBreaker() *CircuitBreaker {
	return c.circuitBreaker
}

func (c *HTTPClient) SendText(ctx context.Context, conn *models.Connection, phone, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.SendTimeout)*time.Second)
	defer cancel()

	var externalID string
	start := time.Now()
	err := c.circuitBreaker.Execute(ctx, func() error {
		var err error
		switch conn.Provider {
		case models.ProviderEvolution:
			externalID, err = c.evolutionSendText(ctx, conn, phone, text)
		case models.ProviderWhapi:
			externalID, err = c.whapiSendText(ctx, conn, phone, text)
		default:
			return ErrUnsupportedProvider
		}
		return err
	})
	metrics.RecordGatewayRequest("send_text", metrics.StatusLabel(err), time.Since(start).Seconds())

	if err != nil {
		c.logger.Error("Failed to send message through gateway",
			zap.String("connection_id", conn.ID.String()),
			zap.String("provider", string(conn.Provider)),
			zap.String("circuit_breaker_state", c.circuitBreaker.GetState()),
			zap.Error(err))
		return "", err
	}
	return externalID, nil
}

func (c *HTTPClient) ConnectionState(ctx context.Context, conn *models.Connection) (models.ConnectionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.StatusTimeout)*time.Second)
	defer cancel()

	var state models.ConnectionStatus
	start := time.Now()
	err := c.circuitBreaker.Execute(ctx, func() error {
		var err error
		switch conn.Provider {
		case models.ProviderEvolution:
			state, err = c.evolutionState(ctx, conn)
		case models.ProviderWhapi:
			state, err = c.whapiState(ctx, conn)
		default:
			return ErrUnsupportedProvider
		}
		return err
	})
	metrics.RecordGatewayRequest("connection_state", metrics.StatusLabel(err), time.Since(start).Seconds())

	if err != nil {
		return "", err
	}
	return state, nil
}

func (c *HTTPClient) evolutionSendText(ctx context.Context, conn *models.Connection, phone, text string) (string, error) {
	endpoint := fmt.Sprintf("%s/message/sendText/%s", strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(conn.InstanceName))
	body := map[string]string{"number": phone, "text": text}

	var resp struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, endpoint, body, c.evolutionAuth(conn), &resp); err != nil {
		return "", err
	}
	return resp.Key.ID, nil
}

func (c *HTTPClient) evolutionState(ctx context.Context, conn *models.Connection) (models.ConnectionStatus, error) {
	endpoint := fmt.Sprintf("%s/instance/connectionState/%s", strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(conn.InstanceName))

	var resp struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, c.evolutionAuth(conn), &resp); err != nil {
		return "", err
	}

	switch strings.ToLower(resp.Instance.State) {
	case "open":
		return models.ConnectionStatusConnected, nil
	case "connecting":
		return models.ConnectionStatusConnecting, nil
	default:
		return models.ConnectionStatusDisconnected, nil
	}
}

func (c *HTTPClient) evolutionAuth(conn *models.Connection) func(*http.Request) {
	key := conn.Token
	if key == "" {
		key = c.cfg.APIKey
	}
	return func(req *http.Request) {
		req.Header.Set("apikey", key)
	}
}

func (c *HTTPClient) whapiSendText(ctx context.Context, conn *models.Connection, phone, text string) (string, error) {
	endpoint := strings.TrimRight(c.cfg.WhapiURL, "/") + "/messages/text"
	body := map[string]string{"to": phone, "body": text}

	var resp struct {
		Sent    bool `json:"sent"`
		Message struct {
			ID string `json:"id"`
		} `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, endpoint, body, whapiAuth(conn), &resp); err != nil {
		return "", err
	}
	return resp.Message.ID, nil
}

func (c *HTTPClient) whapiState(ctx context.Context, conn *models.Connection) (models.ConnectionStatus, error) {
	endpoint := strings.TrimRight(c.cfg.WhapiURL, "/") + "/health"

	var resp struct {
		Status struct {
			Text string `json:"text"`
		} `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, whapiAuth(conn), &resp); err != nil {
		return "", err
	}

	switch strings.ToUpper(resp.Status.Text) {
	case "AUTH":
		return models.ConnectionStatusConnected, nil
	case "INIT", "LAUNCH", "QR":
		return models.ConnectionStatusConnecting, nil
	default:
		return models.ConnectionStatusDisconnected, nil
	}
}

func whapiAuth(conn *models.Connection) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+conn.Token)
	}
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, in any, auth func(*http.Request), out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
