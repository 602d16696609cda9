package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"quizroom-service/internal/domain"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramNotifier posts a quiz summary to a Telegram chat when a quiz
// finishes. Delivery is best-effort: failures are logged and never reach
// the caller. An unconfigured notifier is a no-op.
type TelegramNotifier struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		baseURL: defaultTelegramAPI,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// NewTelegramNotifierWithBaseURL is for tests against a stub endpoint.
func NewTelegramNotifierWithBaseURL(token, chatID, baseURL string) *TelegramNotifier {
	n := NewTelegramNotifier(token, chatID)
	n.baseURL = baseURL
	return n
}

func (n *TelegramNotifier) QuizFinished(ctx context.Context, title string, participantCount int, top []domain.ScoreEntry) {
	if n.token == "" || n.chatID == "" {
		return
	}

	lines := []string{
		fmt.Sprintf("Quiz '%s' finished!", title),
		fmt.Sprintf("Participants: %d", participantCount),
	}
	if len(top) > 0 {
		lines = append(lines, "Top 3:")
		for i, entry := range top {
			lines = append(lines, fmt.Sprintf("%d. %s - %d correct (%g%%)", i+1, entry.Name, entry.Score, entry.Percentage))
		}
	}

	body, err := json.Marshal(map[string]string{
		"chat_id": n.chatID,
		"text":    strings.Join(lines, "\n"),
	})
	if err != nil {
		log.Printf("telegram: marshal summary: %v", err)
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Printf("telegram: build request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Printf("telegram: send summary: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("telegram: send summary: unexpected status %d", resp.StatusCode)
	}
}
