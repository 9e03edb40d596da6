package http

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"timed-quiz-service/internal/domain"
)

func TestWebSocketReceivesQuizStarted(t *testing.T) {
	srv := newTestServer(t)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?quizId=quiz-1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	typ, payload := readNext(t, conn)
	if typ != "joined" || payload["quizId"] != "quiz-1" {
		t.Fatalf("expected joined quiz-1, got %s %v", typ, payload)
	}

	start := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	err = srv.hub.Announce(context.Background(), domain.Announcement{
		Type:      domain.AnnouncementQuizStarted,
		QuizID:    "quiz-1",
		StartTime: start,
	})
	if err != nil {
		t.Fatalf("announce: %v", err)
	}

	typ, payload = readNext(t, conn)
	if typ != "quizStarted" {
		t.Fatalf("expected quizStarted, got %s", typ)
	}
	if payload["quizId"] != "quiz-1" || payload["startTime"] != "2030-01-01T10:00:00Z" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestWebSocketJoinQuizMessage(t *testing.T) {
	srv := newTestServer(t)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "joinQuiz", "payload": map[string]string{"quizId": "quiz-9"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if typ, _ := readNext(t, conn); typ != "joined" {
		t.Fatalf("expected joined, got %s", typ)
	}
	if n := srv.hub.Members(domain.Topic("quiz-9")); n != 1 {
		t.Fatalf("expected 1 member on topic, got %d", n)
	}

	if err := conn.WriteJSON(map[string]any{"type": "answer"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if typ, payload := readNext(t, conn); typ != "error" || payload["message"] != "unsupported message type" {
		t.Fatalf("expected error reply, got %s %v", typ, payload)
	}

	_ = conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.Members(domain.Topic("quiz-9")) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client was not removed from topic")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readNext(t *testing.T, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg.Type, msg.Payload
}
