package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"logguard/internal/model"

	"github.com/sirupsen/logrus"
)

const (
	defaultTelegramAPI = "https://api.telegram.org"
	// Telegram rejects messages longer than this.
	telegramMaxLength = 4096
)

type TelegramNotifier struct {
	botToken  string
	chatID    string
	parseMode string
	apiURL    string
	client    *http.Client
	logger    *logrus.Logger
}

type TelegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type TelegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// NewTelegramNotifier creates a Bot API notifier. apiURL may be empty to use the public endpoint.
func NewTelegramNotifier(botToken, chatID, parseMode, apiURL string, logger *logrus.Logger) *TelegramNotifier {
	if apiURL == "" {
		apiURL = defaultTelegramAPI
	}
	return &TelegramNotifier{
		botToken:  botToken,
		chatID:    chatID,
		parseMode: parseMode,
		apiURL:    strings.TrimRight(apiURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (tn *TelegramNotifier) SendAlert(ctx context.Context, alert model.Alert) error {
	return tn.sendMessage(ctx, tn.formatAlertMessage(alert))
}

func (tn *TelegramNotifier) Destination() string {
	if tn.botToken == "" || tn.chatID == "" {
		return ""
	}
	return "telegram:" + tn.chatID
}

// formatAlertMessage caps the text at telegramMaxLength characters. In HTML
// mode the log text is escaped after truncation so no entity is cut.
func (tn *TelegramNotifier) formatAlertMessage(alert model.Alert) string {
	message := alert.Subject + "\n\n" + alert.Body
	if runes := []rune(message); len(runes) > telegramMaxLength {
		message = string(runes[:telegramMaxLength])
	}
	if tn.effectiveParseMode() == "HTML" {
		message = html.EscapeString(message)
	}
	return message
}

// effectiveParseMode drops Markdown modes, which reject unescaped log text.
func (tn *TelegramNotifier) effectiveParseMode() string {
	switch tn.parseMode {
	case "Markdown", "MarkdownV2":
		return ""
	}
	return tn.parseMode
}

func (tn *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", tn.apiURL, tn.botToken)

	message := TelegramMessage{
		ChatID:    tn.chatID,
		Text:      text,
		ParseMode: tn.effectiveParseMode(),
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := tn.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var telegramResp TelegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&telegramResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !telegramResp.OK {
		return fmt.Errorf("telegram API error: %s", telegramResp.Description)
	}

	tn.logger.Infof("Alert sent to Telegram successfully")
	return nil
}
