package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// TelegramBaseURL is the Bot API root
const TelegramBaseURL = "https://api.telegram.org"

type TelegramNotifier struct {
	client *resty.Client
	token  string
	chatID string
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return newTelegramNotifier(TelegramBaseURL, token, chatID)
}

func newTelegramNotifier(baseURL, token, chatID string) *TelegramNotifier {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(10 * time.Second)
	return &TelegramNotifier{
		client: client,
		token:  token,
		chatID: chatID,
	}
}

func (t *TelegramNotifier) SendAlert(ctx context.Context, level Level, message string) error {
	text := fmt.Sprintf("%s *Decision Engine*\n\n%s", level.emoji(), message)

	resp, err := t.client.R().
		SetContext(ctx).
		SetRawPathParam("token", t.token).
		SetFormData(map[string]string{
			"chat_id":    t.chatID,
			"text":       text,
			"parse_mode": "Markdown",
		}).
		Post("/bot{token}/sendMessage")
	if err != nil {
		return err
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode())
	}

	return nil
}
