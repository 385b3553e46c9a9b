package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/pkg/logger"
)

// NotificationAdapter formats an event for one chat platform and posts it.
type NotificationAdapter interface {
	Send(ctx context.Context, bot *models.IMBot, event *NotificationEvent) error
}

var errMissingChatID = errors.New("telegram bot needs the chat id in its extra field")

// chatChannel describes one webhook platform. Long bodies are cut into
// numbered parts of at most maxLen bytes; channels with maxLen 0 get one post.
type chatChannel struct {
	maxLen  int
	text    func(event *NotificationEvent) string
	payload func(bot *models.IMBot, event *NotificationEvent, part string) interface{}
	// sign rewrites the webhook URL or payload for platforms with a shared secret.
	sign     func(bot *models.IMBot, payload interface{}, now time.Time) string
	validate func(bot *models.IMBot) error
}

var chatChannels = map[string]*chatChannel{
	"slack": {
		maxLen: 3000,
		text:   func(e *NotificationEvent) string { return e.Body },
		payload: func(_ *models.IMBot, e *NotificationEvent, part string) interface{} {
			header := fmt.Sprintf("%s *%s*", severityMarker(e.Severity), e.Title)
			return map[string]interface{}{
				"text": header,
				"blocks": []map[string]interface{}{
					{"type": "section", "text": map[string]string{"type": "mrkdwn", "text": header}},
					{"type": "section", "text": map[string]string{"type": "mrkdwn", "text": part}},
				},
			}
		},
	},
	"discord": {
		maxLen: 1900,
		text:   markdownMessage,
		payload: func(_ *models.IMBot, _ *NotificationEvent, part string) interface{} {
			return map[string]interface{}{"content": part}
		},
	},
	"teams": {
		payload: func(_ *models.IMBot, e *NotificationEvent, _ string) interface{} {
			return adaptiveCard(severityMarker(e.Severity)+" "+e.Title, e.Body)
		},
	},
	"telegram": {
		maxLen: 4000,
		text:   markdownMessage,
		payload: func(bot *models.IMBot, _ *NotificationEvent, part string) interface{} {
			return map[string]interface{}{"chat_id": bot.Extra, "text": part, "parse_mode": "Markdown"}
		},
		validate: func(bot *models.IMBot) error {
			if bot.Extra == "" {
				return errMissingChatID
			}
			return nil
		},
	},
	"dingtalk": {
		maxLen: 19000,
		text:   markdownMessage,
		payload: func(_ *models.IMBot, e *NotificationEvent, part string) interface{} {
			return map[string]interface{}{
				"msgtype":  "markdown",
				"markdown": map[string]string{"title": e.Title, "text": part},
			}
		},
		sign: func(bot *models.IMBot, _ interface{}, now time.Time) string {
			return dingTalkWebhookURL(bot.Webhook, bot.Secret, now)
		},
	},
	"feishu": {
		maxLen: 4000,
		text:   func(e *NotificationEvent) string { return e.Title + "\n\n" + e.Body },
		payload: func(_ *models.IMBot, _ *NotificationEvent, part string) interface{} {
			return map[string]interface{}{"msg_type": "text", "content": map[string]string{"text": part}}
		},
		sign: func(bot *models.IMBot, payload interface{}, now time.Time) string {
			if bot.Secret != "" {
				body := payload.(map[string]interface{})
				body["timestamp"] = strconv.FormatInt(now.Unix(), 10)
				body["sign"] = feishuSign(now.Unix(), bot.Secret)
			}
			return bot.Webhook
		},
	},
	"wechat_work": {
		maxLen: 4000,
		text:   markdownMessage,
		payload: func(_ *models.IMBot, _ *NotificationEvent, part string) interface{} {
			return map[string]interface{}{"msgtype": "markdown_v2", "markdown_v2": map[string]string{"content": part}}
		},
	},
}

// genericChannel posts the event itself as JSON.
var genericChannel = &chatChannel{
	payload: func(_ *models.IMBot, e *NotificationEvent, _ string) interface{} { return e },
}

func getAdapter(botType string) NotificationAdapter {
	if ch, ok := chatChannels[botType]; ok {
		return ch
	}
	return genericChannel
}

func (ch *chatChannel) Send(ctx context.Context, bot *models.IMBot, event *NotificationEvent) error {
	if ch.validate != nil {
		if err := ch.validate(bot); err != nil {
			return err
		}
	}

	post := func(part string) error {
		payload := ch.payload(bot, event, part)
		target := bot.Webhook
		if ch.sign != nil {
			target = ch.sign(bot, payload, time.Now())
		}
		return postJSON(ctx, target, payload)
	}

	if ch.maxLen == 0 || ch.text == nil {
		return post("")
	}
	return sendParts(ch.text(event), ch.maxLen, post)
}

var notificationHTTPClient = &http.Client{Timeout: 10 * time.Second}

func postJSON(ctx context.Context, webhookURL string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := notificationHTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook answered %d: %s", resp.StatusCode, snippet)
	}
	logger.Debug().Int("status", resp.StatusCode).Int("bytes", len(body)).Msg("[Notification] Delivered")
	return nil
}

// splitMessage cuts msg into chunks of at most maxLen bytes, breaking after
// a newline when one falls in the second half of the chunk.
func splitMessage(msg string, maxLen int) []string {
	var parts []string
	for len(msg) > maxLen {
		cut := maxLen
		for i := maxLen - 1; i > maxLen/2; i-- {
			if msg[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, msg[:cut])
		msg = msg[cut:]
	}
	return append(parts, msg)
}

func sendParts(text string, maxLen int, send func(part string) error) error {
	parts := splitMessage(text, maxLen)
	for i, part := range parts {
		if len(parts) > 1 {
			part = fmt.Sprintf("[%d/%d]\n%s", i+1, len(parts), part)
		}
		if err := send(part); err != nil {
			return fmt.Errorf("part %d/%d: %w", i+1, len(parts), err)
		}
	}
	return nil
}

func severityMarker(severity string) string {
	switch severity {
	case "critical":
		return "🔴"
	case "high":
		return "🟠"
	case "medium":
		return "🟡"
	default:
		return "🔵"
	}
}

func markdownMessage(event *NotificationEvent) string {
	return fmt.Sprintf("%s **%s**\n\n%s", severityMarker(event.Severity), event.Title, event.Body)
}

func adaptiveCard(title, text string) map[string]interface{} {
	card := map[string]interface{}{
		"type":    "AdaptiveCard",
		"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
		"version": "1.5",
		"body": []map[string]interface{}{
			{"type": "TextBlock", "text": title, "weight": "bolder", "size": "medium", "wrap": true},
			{"type": "TextBlock", "text": text, "wrap": true},
		},
	}
	return map[string]interface{}{
		"type": "message",
		"attachments": []map[string]interface{}{
			{"contentType": "application/vnd.microsoft.card.adaptive", "content": card},
		},
	}
}

func hmacBase64(key, msg []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write(msg)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// DingTalk signs "<ms>\n<secret>" with the secret as key.
func dingTalkSign(timestamp int64, secret string) string {
	return hmacBase64([]byte(secret), []byte(fmt.Sprintf("%d\n%s", timestamp, secret)))
}

func dingTalkWebhookURL(webhook, secret string, now time.Time) string {
	if secret == "" {
		return webhook
	}
	ts := now.UnixMilli()
	return fmt.Sprintf("%s&timestamp=%d&sign=%s", webhook, ts, url.QueryEscape(dingTalkSign(ts, secret)))
}

// Feishu keys the HMAC with "<s>\n<secret>" over an empty message.
func feishuSign(timestamp int64, secret string) string {
	return hmacBase64([]byte(fmt.Sprintf("%d\n%s", timestamp, secret)), nil)
}
