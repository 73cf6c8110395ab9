package ingest

import (
	"context"
	"fmt"
	"time"

	qdb "github.com/questdb/go-questdb-client/v3"
	"github.com/rs/zerolog"

	"github.com/afroash/dht-generator/internal/models"
)

// QuestDBConfig holds settings for the ILP/TCP sender
type QuestDBConfig struct {
	Host           string
	Port           int
	BufferBytes    int
	ConnectTimeout time.Duration
}

// QuestDBSender writes rows to QuestDB over the InfluxDB line protocol (TCP).
// Rows are timestamped by the server when they arrive.
type QuestDBSender struct {
	addr    string
	sender  qdb.LineSender
	logger  zerolog.Logger
	pending int
}

// NewQuestDBSender connects to the QuestDB ILP endpoint.
func NewQuestDBSender(ctx context.Context, cfg QuestDBConfig, logger zerolog.Logger) (*QuestDBSender, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	logger.Info().Str("addr", addr).Int("buffer_bytes", cfg.BufferBytes).Msg("Connecting to QuestDB...")

	dialCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	sender, err := qdb.NewLineSender(dialCtx,
		qdb.WithTcp(),
		qdb.WithAddress(addr),
		qdb.WithInitBufferSize(cfg.BufferBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s failed: %w", addr, err)
	}

	logger.Info().Str("addr", addr).Msg("Connected to QuestDB")
	return &QuestDBSender{
		addr:   addr,
		sender: sender,
		logger: logger,
	}, nil
}

// Row appends a row to the client buffer
func (q *QuestDBSender) Row(ctx context.Context, row models.Row) error {
	err := q.sender.
		Table(row.Table).
		Symbol(row.TagName, row.TagValue).
		Float64Column(row.FieldName, row.Value).
		AtNow(ctx)
	if err != nil {
		return fmt.Errorf("append %s row: %w", row.Table, err)
	}
	q.pending++
	return nil
}

// Flush writes the buffered rows to the socket
func (q *QuestDBSender) Flush(ctx context.Context) error {
	if err := q.sender.Flush(ctx); err != nil {
		return fmt.Errorf("flush to %s: %w", q.addr, err)
	}
	q.logger.Debug().Int("rows", q.pending).Msg("Flushed rows")
	q.pending = 0
	return nil
}

// Close closes the underlying TCP connection
func (q *QuestDBSender) Close(ctx context.Context) error {
	q.logger.Info().Str("addr", q.addr).Msg("Closing connection")
	if err := q.sender.Close(ctx); err != nil {
		return fmt.Errorf("close %s: %w", q.addr, err)
	}
	return nil
}
