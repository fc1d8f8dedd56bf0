package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"knowledgeflow/internal/domain"
)

func TestProgressStreamPushesUpdates(t *testing.T) {
	s := newTestServers(t)
	s.seedCourse(t, "c1")
	signup(t, s.learner, "alice")
	if rec, _ := do(t, s.learner, http.MethodPost, "/api/courses/c1/enroll", map[string]string{"username": "alice"}); rec.Code != http.StatusOK {
		t.Fatalf("enroll: %d", rec.Code)
	}

	server := httptest.NewServer(s.learner)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/users/alice/progress/stream"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	snapshot := readEvent(t, conn)
	if snapshot.Type != domain.EventSnapshot || len(snapshot.Courses) != 1 || snapshot.Courses[0].ID != "c1" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	rec, _ := do(t, s.learner, http.MethodPost, "/api/users/alice/courses/c1/progress", map[string]any{
		"completedLessons": []string{"l1"}, "overallProgress": 25,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d", rec.Code)
	}

	update := readEvent(t, conn)
	if update.Type != domain.EventProgress || update.CourseID != "c1" || update.Progress == nil {
		t.Fatalf("unexpected update %+v", update)
	}
	if update.Progress.OverallProgress != 25 || len(update.Progress.CompletedLessons) != 1 {
		t.Fatalf("unexpected progress payload %+v", update.Progress)
	}
}

func TestProgressStreamRejectsUnknownLearner(t *testing.T) {
	s := newTestServers(t)
	server := httptest.NewServer(s.learner)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/users/ghost/progress/stream"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v", resp)
	}
}

func TestProgressStreamChecksOrigin(t *testing.T) {
	s := newTestServers(t)
	signup(t, s.learner, "alice")
	server := httptest.NewServer(s.learner)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/users/alice/progress/stream"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(u, header); err == nil {
		t.Fatalf("expected foreign origin to be rejected")
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.ProgressEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event domain.ProgressEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return event
}
