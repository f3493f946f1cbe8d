package clients

import (
	"context"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/basket/pkg/retrier"
)

// Discord rejects messages above this length.
const discordMessageLimit = 2000

// DiscordWebhook posts messages to a Discord channel webhook.
type DiscordWebhook struct {
	url        string
	httpClient *http.Client
}

// NewDiscordWebhook creates a webhook client.
func NewDiscordWebhook(url string, timeout time.Duration) *DiscordWebhook {
	return &DiscordWebhook{url: url, httpClient: newHTTPClient(timeout)}
}

type webhookMessage struct {
	Content string `json:"content"`
}

// Send posts content, truncated to the Discord message limit.
func (w *DiscordWebhook) Send(ctx context.Context, content string) error {
	if utf8.RuneCountInString(content) > discordMessageLimit {
		content = string([]rune(content)[:discordMessageLimit])
	}

	// webhooks answer 204 No Content, nothing to decode
	err := doJSON(ctx, w.httpClient, http.MethodPost, w.url, webhookMessage{Content: content}, nil)
	if err == nil {
		return nil
	}

	// 4xx other than rate limiting is final
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 &&
		statusErr.Code != http.StatusTooManyRequests {
		return retrier.Permanent(errors.Wrap(err, "discord webhook"))
	}
	return errors.Wrap(err, "discord webhook")
}
