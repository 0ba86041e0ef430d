package logging

import (
	"bytes"
	"container/ring"
	"strings"
	"testing"
)

func TestLogBroadcasterWriteLogsBlockedSubscriberContext(t *testing.T) {
	b := &LogBroadcaster{
		buffer:      ring.New(DefaultBufferSize),
		subscribers: map[string]chan string{"slow-subscriber": make(chan string)},
	}

	var warnOutput bytes.Buffer
	origWarnWriter := broadcastWarnWriter
	broadcastWarnWriter = &warnOutput
	defer func() {
		broadcastWarnWriter = origWarnWriter
	}()

	n, err := b.Write([]byte("hello world"))
	if err != nil {
		t.Fatalf("Write() error = %v, want nil", err)
	}
	if n != len("hello world") {
		t.Fatalf("Write() bytes = %d, want %d", n, len("hello world"))
	}

	got := warnOutput.String()
	if !strings.Contains(got, "subscriber_blocked") {
		t.Fatalf("blocked subscriber warning missing reason: %q", got)
	}
	if !strings.Contains(got, "subscriber_id=slow-subscriber") {
		t.Fatalf("blocked subscriber warning missing id context: %q", got)
	}
	if !strings.Contains(got, "action=drop_message") {
		t.Fatalf("blocked subscriber warning missing action context: %q", got)
	}
}

func TestLogBroadcasterSubscribeReceivesNewLines(t *testing.T) {
	b := NewLogBroadcaster(4)

	ch, history := b.Subscribe("client-1")
	if len(history) != 0 {
		t.Fatalf("expected no history for a fresh broadcaster, got %v", history)
	}

	if _, err := b.Write([]byte("line one")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	select {
	case got := <-ch:
		if got != "line one" {
			t.Fatalf("got %q, want %q", got, "line one")
		}
	default:
		t.Fatal("expected subscriber to receive the written line")
	}
}

func TestLogBroadcasterSubscribeReplaysHistory(t *testing.T) {
	b := NewLogBroadcaster(4)
	if _, err := b.Write([]byte("before subscribe")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	_, history := b.Subscribe("client-2")
	if len(history) != 1 || history[0] != "before subscribe" {
		t.Fatalf("expected replayed history, got %v", history)
	}
}

func TestLogBroadcasterUnsubscribeClosesChannel(t *testing.T) {
	b := NewLogBroadcaster(4)
	ch, _ := b.Subscribe("client-3")

	b.Unsubscribe("client-3")

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after Unsubscribe")
	}
}
