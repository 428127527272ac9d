// README: Expo push sender over the HTTP API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const expoTokenPrefix = "ExponentPushToken["

// IsExpoToken reports whether a push token belongs to Expo rather than raw FCM.
func IsExpoToken(token string) bool {
	return strings.HasPrefix(token, expoTokenPrefix)
}

type expoMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound"`
}

// ExpoSender posts notifications to Expo's push endpoint. Expo queues the
// delivery; a 2xx response only means the message was accepted.
type ExpoSender struct {
	url    string
	client *http.Client
}

func NewExpoSender(url string) *ExpoSender {
	return &ExpoSender{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *ExpoSender) Send(ctx context.Context, token string, msg Message) error {
	body, err := json.Marshal(expoMessage{
		To:    token,
		Title: msg.Title,
		Body:  msg.Body,
		Data:  msg.Data,
		Sound: "default",
	})
	if err != nil {
		return fmt.Errorf("marshal expo message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build expo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("expo push: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("expo push: status %d", resp.StatusCode)
	}
	return nil
}
