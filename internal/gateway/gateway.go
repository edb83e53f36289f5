// Package gateway sends outbound messages and queries connection state through the WhatsApp
// gateway provider that owns a connection.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/popeskul/wa-inbox/internal/models"
)

// ErrUpstream matches every *UpstreamError.
var ErrUpstream = errors.New("gateway request failed")

// ErrUnsupportedProvider is returned for connections whose provider cannot send.
var ErrUnsupportedProvider = errors.New("provider does not support outbound messages")

// UpstreamError carries the provider's response when it rejects a request.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gateway responded with status %d: %s", e.StatusCode, e.Body)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

type Client interface {
	// SendText delivers text to the chat of phone (digits only) and returns the provider's
	// message id.
	SendText(ctx context.Context, conn *models.Connection, phone, text string) (string, error)
	ConnectionState(ctx context.Context, conn *models.Connection) (models.ConnectionStatus, error)
}
