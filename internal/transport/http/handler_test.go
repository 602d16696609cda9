package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quizroom-service/internal/app"
	"quizroom-service/internal/broadcast"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	service := app.NewQuizService(memory.NewStore(), broadcast.NewHub(), nil)
	mux := http.NewServeMux()
	NewHandler(service).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func createCapitalsQuiz(t *testing.T, base string) *domain.Quiz {
	t.Helper()
	var quiz domain.Quiz
	resp := doJSON(t, http.MethodPost, base+"/quizzes", map[string]any{
		"title": "Capitals",
		"questions": []map[string]any{
			{
				"text": "Capital of France?",
				"choices": []map[string]any{
					{"text": "Paris", "is_correct": true},
					{"text": "Lyon"},
				},
			},
			{
				"text": "Capital of Japan?",
				"choices": []map[string]any{
					{"text": "Osaka"},
					{"text": "Tokyo", "is_correct": true},
				},
			},
		},
	}, &quiz)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create quiz: status %d", resp.StatusCode)
	}
	return &quiz
}

func correctChoice(t *testing.T, q domain.Question) string {
	t.Helper()
	for _, c := range q.Choices {
		if c.IsCorrect {
			return c.ID
		}
	}
	t.Fatalf("question %s has no correct choice", q.ID)
	return ""
}

func TestQuizRoundTrip(t *testing.T) {
	server := newTestServer(t)
	base := server.URL

	quiz := createCapitalsQuiz(t, base)
	if quiz.Status != domain.StatusWaiting {
		t.Fatalf("expected waiting quiz, got %s", quiz.Status)
	}

	var alice domain.Participant
	resp := doJSON(t, http.MethodPost, base+"/join", map[string]string{
		"room_code": strings.ToLower(quiz.RoomCode),
		"name":      "Alice",
	}, &alice)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("join: status %d", resp.StatusCode)
	}
	if alice.QuizID != quiz.ID {
		t.Fatalf("participant bound to wrong quiz: %s", alice.QuizID)
	}

	var started domain.Quiz
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/quizzes/%s/start", base, quiz.ID), nil, &started)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: status %d", resp.StatusCode)
	}
	if started.Status != domain.StatusRunning {
		t.Fatalf("expected running, got %s", started.Status)
	}

	var submit app.SubmitResult
	resp = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/quizzes/%s/participants/%s/answers", base, quiz.ID, alice.ID),
		map[string]any{"answers": []map[string]string{
			{"question_id": quiz.Questions[0].ID, "choice_id": correctChoice(t, quiz.Questions[0])},
		}}, &submit)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d", resp.StatusCode)
	}
	if submit.Score != 1 || submit.Rank != 1 {
		t.Fatalf("unexpected submit result: %+v", submit)
	}

	var status app.StatusResult
	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/quizzes/%s/status", base, quiz.ID), nil, &status)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: status %d", resp.StatusCode)
	}
	if len(status.Scoreboard) != 1 || status.Scoreboard[0].Name != "Alice" {
		t.Fatalf("unexpected scoreboard: %+v", status.Scoreboard)
	}

	var finished app.FinishResult
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/quizzes/%s/finish", base, quiz.ID), nil, &finished)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finish: status %d", resp.StatusCode)
	}
	if finished.Quiz.Status != domain.StatusFinished {
		t.Fatalf("expected finished, got %s", finished.Quiz.Status)
	}

	var result app.ParticipantResult
	resp = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/rooms/%s/participants/%s/result", base, quiz.RoomCode, alice.ID), nil, &result)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("participant result: status %d", resp.StatusCode)
	}
	if result.Participant.Name != "Alice" || result.Winner == nil {
		t.Fatalf("unexpected result payload: %+v", result)
	}
}

func TestQuestionRoutes(t *testing.T) {
	server := newTestServer(t)
	base := server.URL

	quiz := createCapitalsQuiz(t, base)

	var updated domain.Quiz
	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/quizzes/%s/questions", base, quiz.ID), map[string]any{
		"text": "Capital of Italy?",
		"choices": []map[string]any{
			{"text": "Rome", "is_correct": true},
			{"text": "Milan"},
		},
	}, &updated)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add question: status %d", resp.StatusCode)
	}
	if len(updated.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(updated.Questions))
	}

	resp = doJSON(t, http.MethodDelete,
		fmt.Sprintf("%s/quizzes/%s/questions/%s", base, quiz.ID, updated.Questions[2].ID), nil, &updated)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove question: status %d", resp.StatusCode)
	}
	if len(updated.Questions) != 2 {
		t.Fatalf("expected 2 questions after removal, got %d", len(updated.Questions))
	}
}

func TestRoomLookup(t *testing.T) {
	server := newTestServer(t)
	base := server.URL

	quiz := createCapitalsQuiz(t, base)

	var lookup struct {
		Quiz          domain.Quiz `json:"quiz"`
		TimeRemaining int         `json:"time_remaining"`
	}
	resp := doJSON(t, http.MethodGet, base+"/rooms/"+strings.ToLower(quiz.RoomCode), nil, &lookup)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("room lookup: status %d", resp.StatusCode)
	}
	if lookup.Quiz.ID != quiz.ID {
		t.Fatalf("wrong quiz: %s", lookup.Quiz.ID)
	}
	if lookup.TimeRemaining != domain.DefaultDurationSeconds {
		t.Fatalf("expected full duration before start, got %d", lookup.TimeRemaining)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	server := newTestServer(t)
	base := server.URL

	quiz := createCapitalsQuiz(t, base)

	var detail struct {
		Detail string `json:"detail"`
	}

	// Unknown room -> 404.
	resp := doJSON(t, http.MethodPost, base+"/join", map[string]string{"room_code": "NOSUCH", "name": "Alice"}, &detail)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown room: status %d", resp.StatusCode)
	}
	if detail.Detail == "" {
		t.Fatal("error body must carry a detail message")
	}

	// Unknown quiz -> 404.
	resp = doJSON(t, http.MethodGet, base+"/quizzes/absent/status", nil, &detail)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown quiz: status %d", resp.StatusCode)
	}

	// Invalid duration -> 400.
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/quizzes/%s/start", base, quiz.ID),
		map[string]int{"duration_seconds": 5}, &detail)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short duration: status %d", resp.StatusCode)
	}

	// Malformed JSON -> 400.
	req, _ := http.NewRequest(http.MethodPost, base+"/join", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	raw, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("malformed join: %v", err)
	}
	raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed JSON: status %d", raw.StatusCode)
	}

	// Illegal transition -> 400.
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/quizzes/%s/finish", base, quiz.ID), nil, &detail)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("finish before start: status %d", resp.StatusCode)
	}
}
