package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/dht-generator/internal/config"
)

func TestNewDialer_QuestDB(t *testing.T) {
	listener := newILPListener(t)
	qc := listener.config()

	dial, err := NewDialer(config.IngestConfig{
		Transport:      config.TransportQuestDB,
		Host:           qc.Host,
		Port:           qc.Port,
		BufferBytes:    qc.BufferBytes,
		ConnectTimeout: time.Second,
	}, "run-1", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDialer failed: %v", err)
	}

	sender, err := dial(context.Background())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer sender.Close(context.Background())

	if _, ok := sender.(*QuestDBSender); !ok {
		t.Errorf("sender is %T, want *QuestDBSender", sender)
	}
}

func TestNewDialer_WebSocket(t *testing.T) {
	collector := NewMockCollector()
	defer collector.Close()

	dial, err := NewDialer(config.IngestConfig{
		Transport:      config.TransportWebSocket,
		URL:            collector.URL(),
		MaxPendingRows: 4,
		AckTimeout:     time.Second,
	}, "run-1", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDialer failed: %v", err)
	}

	sender, err := dial(context.Background())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer sender.Close(context.Background())

	ws, ok := sender.(*WebSocketSender)
	if !ok {
		t.Fatalf("sender is %T, want *WebSocketSender", sender)
	}
	if ws.runID != "run-1" {
		t.Errorf("runID = %q, want run-1", ws.runID)
	}
}

func TestNewDialer_UnknownTransport(t *testing.T) {
	_, err := NewDialer(config.IngestConfig{Transport: "smoke-signals"}, "", zerolog.Nop())
	if !errors.Is(err, ErrUnknownTransport) {
		t.Errorf("err = %v, want ErrUnknownTransport", err)
	}
}
