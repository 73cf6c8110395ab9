package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/afroash/dht-generator/internal/config"
	"github.com/afroash/dht-generator/internal/models"
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrBufferFull       = errors.New("row buffer full")
	ErrRejected         = errors.New("rejected by server")
	ErrUnknownTransport = errors.New("unknown transport")
)

// Sender is a connection to an ingestion endpoint. Rows are buffered
// client-side until Flush, which blocks until the rows are sent or fail.
type Sender interface {
	// Row appends a row to the pending buffer.
	Row(ctx context.Context, row models.Row) error
	// Flush transmits all pending rows.
	Flush(ctx context.Context) error
	// Close releases the connection.
	Close(ctx context.Context) error
}

// Dialer opens a Sender.
type Dialer func(ctx context.Context) (Sender, error)

var (
	_ Sender = (*QuestDBSender)(nil)
	_ Sender = (*WebSocketSender)(nil)
)

// NewDialer returns a Dialer for the configured transport.
func NewDialer(cfg config.IngestConfig, runID string, logger zerolog.Logger) (Dialer, error) {
	switch cfg.Transport {
	case config.TransportQuestDB, "":
		qc := QuestDBConfig{
			Host:           cfg.Host,
			Port:           cfg.Port,
			BufferBytes:    cfg.BufferBytes,
			ConnectTimeout: cfg.ConnectTimeout,
		}
		return func(ctx context.Context) (Sender, error) {
			return NewQuestDBSender(ctx, qc, logger)
		}, nil
	case config.TransportWebSocket:
		wc := WebSocketConfig{
			URL:            cfg.URL,
			AuthToken:      cfg.AuthToken,
			RunID:          runID,
			MaxPendingRows: cfg.MaxPendingRows,
			ConnectTimeout: cfg.ConnectTimeout,
			AckTimeout:     cfg.AckTimeout,
		}
		return func(ctx context.Context) (Sender, error) {
			return NewWebSocketSender(ctx, wc, logger)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)
	}
}
