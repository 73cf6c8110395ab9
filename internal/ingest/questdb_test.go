package ingest

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/dht-generator/internal/models"
)

// ilpListener accepts one TCP connection and publishes every received line.
type ilpListener struct {
	ln    net.Listener
	lines chan string
}

func newILPListener(t *testing.T) *ilpListener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	l := &ilpListener{ln: ln, lines: make(chan string, 64)}
	go func() {
		defer close(l.lines)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			l.lines <- scanner.Text()
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return l
}

func (l *ilpListener) config() QuestDBConfig {
	addr := l.ln.Addr().(*net.TCPAddr)
	return QuestDBConfig{
		Host:           addr.IP.String(),
		Port:           addr.Port,
		BufferBytes:    1024,
		ConnectTimeout: time.Second,
	}
}

func (l *ilpListener) next(t *testing.T) string {
	t.Helper()
	select {
	case line, ok := <-l.lines:
		if !ok {
			t.Fatal("connection closed before line arrived")
		}
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
	}
	return ""
}

func TestQuestDBSender_WritesLineProtocol(t *testing.T) {
	listener := newILPListener(t)
	ctx := context.Background()

	sender, err := NewQuestDBSender(ctx, listener.config(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewQuestDBSender failed: %v", err)
	}
	defer sender.Close(ctx)

	reading := models.NewReading("s1", 20.1, 80.5)
	if err := sender.Row(ctx, reading.TemperatureRow()); err != nil {
		t.Fatalf("Row failed: %v", err)
	}
	if err := sender.Row(ctx, reading.HumidityRow()); err != nil {
		t.Fatalf("Row failed: %v", err)
	}
	if err := sender.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	wants := []string{
		"temperature,sensor_id=s1 temp_c=20.1",
		"humidity,sensor_id=s1 rel_humidity=80.5",
	}
	for _, want := range wants {
		line := listener.next(t)
		// AtNow leaves the timestamp to the server
		if strings.TrimSpace(line) != want {
			t.Errorf("line = %q, want %q", line, want)
		}
	}
}

func TestQuestDBSender_NothingSentBeforeFlush(t *testing.T) {
	listener := newILPListener(t)
	ctx := context.Background()

	sender, err := NewQuestDBSender(ctx, listener.config(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewQuestDBSender failed: %v", err)
	}
	defer sender.Close(ctx)

	if err := sender.Row(ctx, tempRow("s2", 19.9)); err != nil {
		t.Fatalf("Row failed: %v", err)
	}

	select {
	case line := <-listener.lines:
		t.Fatalf("line %q arrived before Flush", line)
	case <-time.After(100 * time.Millisecond):
	}

	if err := sender.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if line := listener.next(t); !strings.HasPrefix(line, "temperature,sensor_id=s2 ") {
		t.Errorf("line = %q", line)
	}
}

func TestQuestDBSender_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	cfg := QuestDBConfig{Host: "127.0.0.1", Port: port, BufferBytes: 1024, ConnectTimeout: time.Second}
	if _, err := NewQuestDBSender(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("NewQuestDBSender should fail when nothing listens")
	}
}
