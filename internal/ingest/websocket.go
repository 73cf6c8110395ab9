package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/dht-generator/internal/models"
)

// ConnectionState represents the current state of the connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (cs ConnectionState) String() string {
	switch cs {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// WebSocketConfig holds configuration for the websocket sender
type WebSocketConfig struct {
	URL            string
	AuthToken      string
	RunID          string
	MaxPendingRows int
	ConnectTimeout time.Duration
	AckTimeout     time.Duration
}

// WebSocketSender streams row batches to a collector over a WebSocket.
// Each Flush sends one batch message and waits for the collector's ack.
type WebSocketSender struct {
	url        string
	authToken  string
	runID      string
	conn       *websocket.Conn
	state      ConnectionState
	stateMutex sync.RWMutex
	buffer     *RowBuffer
	handshake  time.Duration
	ackTimeout time.Duration
	logger     zerolog.Logger
	closeOnce  sync.Once
	closeErr   error
}

// NewWebSocketSender creates a sender and connects it.
func NewWebSocketSender(ctx context.Context, config WebSocketConfig, logger zerolog.Logger) (*WebSocketSender, error) {
	s := &WebSocketSender{
		url:        config.URL,
		authToken:  config.AuthToken,
		runID:      config.RunID,
		state:      StateDisconnected,
		buffer:     NewRowBuffer(config.MaxPendingRows),
		handshake:  config.ConnectTimeout,
		ackTimeout: config.AckTimeout,
		logger:     logger,
	}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// setState safely updates the connection state
func (s *WebSocketSender) setState(state ConnectionState) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	s.state = state
	s.logger.Debug().Str("state", state.String()).Msg("Connection state updated")
}

// State returns the current connection state
func (s *WebSocketSender) State() ConnectionState {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.state
}

// IsConnected returns true if currently connected
func (s *WebSocketSender) IsConnected() bool {
	return s.State() == StateConnected
}

// Pending returns the number of rows waiting for the next flush
func (s *WebSocketSender) Pending() int {
	return s.buffer.Size()
}

func (s *WebSocketSender) connect(ctx context.Context) error {
	s.setState(StateConnecting)
	s.logger.Info().Str("url", s.url).Msg("Connecting to collector...")

	dialer := websocket.Dialer{
		HandshakeTimeout: s.handshake,
	}

	header := http.Header{}
	if s.authToken != "" {
		header.Set("Authorization", "Bearer "+s.authToken)
	}

	conn, resp, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("dial failed: %w", err)
	}
	defer resp.Body.Close()

	s.conn = conn
	s.setState(StateConnected)
	s.logger.Info().Msg("Connected to collector")
	return nil
}

// Row queues a row for the next batch
func (s *WebSocketSender) Row(ctx context.Context, row models.Row) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	if !s.buffer.Push(row) {
		return fmt.Errorf("%w: %s", ErrBufferFull, s.buffer)
	}
	return nil
}

// Flush sends every pending row as one batch and waits for the ack.
// Cancelling ctx tears down the connection; the error then wraps ctx.Err().
func (s *WebSocketSender) Flush(ctx context.Context) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	rows := s.buffer.Drain()
	if len(rows) == 0 {
		return nil
	}

	msg, err := models.NewMessage(models.MessageTypeBatch, models.BatchMessage{
		RunID: s.runID,
		Rows:  rows,
		Count: len(rows),
	})
	if err != nil {
		return fmt.Errorf("failed to create batch message: %w", err)
	}

	deadline := s.flushDeadline(ctx)
	s.conn.SetWriteDeadline(deadline)
	s.conn.SetReadDeadline(deadline)
	defer s.conn.SetReadDeadline(time.Time{})

	// only the net.Conn is touched off this goroutine
	stop := context.AfterFunc(ctx, func() {
		s.conn.UnderlyingConn().Close()
	})
	defer stop()

	if err := s.conn.WriteJSON(msg); err != nil {
		return s.flushErr(ctx, fmt.Errorf("send batch: %w", err))
	}
	if err := s.awaitAck(); err != nil {
		return s.flushErr(ctx, err)
	}
	s.logger.Debug().Int("count", len(rows)).Msg("Sent batch of rows")
	return nil
}

// flushDeadline is the earlier of ctx's deadline and now+ackTimeout.
// Zero means no deadline.
func (s *WebSocketSender) flushDeadline(ctx context.Context) time.Time {
	var deadline time.Time
	if s.ackTimeout > 0 {
		deadline = time.Now().Add(s.ackTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return deadline
}

// flushErr prefers the context error over the transport error it caused.
func (s *WebSocketSender) flushErr(ctx context.Context, err error) error {
	ctxErr := ctx.Err()
	if d, ok := ctx.Deadline(); ok && ctxErr == nil && !time.Now().Before(d) {
		// the socket deadline can fire just before the context's own timer
		ctxErr = context.DeadlineExceeded
	}
	if ctxErr != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("flush: %w", ctxErr)
	}
	return err
}

// awaitAck reads until the collector acknowledges or rejects the batch
func (s *WebSocketSender) awaitAck() error {
	for {
		var reply models.Message
		if err := s.conn.ReadJSON(&reply); err != nil {
			return fmt.Errorf("await ack: %w", err)
		}

		switch reply.Type {
		case models.MessageTypeAck:
			return nil
		case models.MessageTypeError:
			var errMsg models.ErrorMessage
			if err := reply.UnmarshalPayload(&errMsg); err != nil {
				return fmt.Errorf("%w: unreadable error payload", ErrRejected)
			}
			return fmt.Errorf("%w: %s: %s", ErrRejected, errMsg.Code, errMsg.Message)
		default:
			s.logger.Debug().Str("type", string(reply.Type)).Msg("Unknown message type")
		}
	}
}

// Close gracefully shuts down the connection. Only the first call has effect.
func (s *WebSocketSender) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.logger.Info().Msg("Closing connection")
		if s.conn != nil {
			s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			// a cancelled flush may already have closed the socket
			if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				s.closeErr = err
			}
		}
		s.setState(StateDisconnected)

		stats := s.buffer.Stats()
		s.logger.Info().
			Int("unsent_rows", s.Pending()).
			Int64("rows_pushed", stats.TotalPushed).
			Int64("rows_refused", stats.TotalRefused).
			Int64("rows_sent", stats.TotalDrained).
			Int("high_water_mark", stats.HighWaterMark).
			Time("last_push", stats.LastPushTime).
			Msg("Connection closed")
	})
	return s.closeErr
}
