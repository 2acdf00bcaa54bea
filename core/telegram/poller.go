package telegram

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/slrbot/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPoll = 10 * time.Second

// allowedUpdates limits delivery to what the router handles.
var allowedUpdates = []string{"message", "callback_query"}

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

// LongPollTimeout returns the effective getUpdates timeout.
func (o PollerOptions) LongPollTimeout() time.Duration {
	if o.LongPollTimeoutSeconds <= 0 {
		return defaultLongPoll
	}
	return time.Duration(o.LongPollTimeoutSeconds) * time.Second
}

// BuildPoller returns a Telebot poller based on provided options.
func BuildPoller(opts PollerOptions) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(opts.RunMode), coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:         fmt.Sprintf("%s:%d", opts.Webhook.Listen, opts.Webhook.Port),
			Endpoint:       &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
			AllowedUpdates: allowedUpdates,
		}
	}
	return &tele.LongPoller{Timeout: opts.LongPollTimeout(), AllowedUpdates: allowedUpdates}
}
