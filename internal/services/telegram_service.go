package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramService sends admin notifications to a Telegram chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	httpClient  *http.Client
	log         zerolog.Logger
}

func NewTelegramService(botToken, adminChatID string, log zerolog.Logger) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     defaultTelegramAPI,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage posts an HTML message to chatID. Without a bot token it does nothing.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		s.log.Debug().Msg("telegram bot token not configured")
		return nil
	}

	body, err := json.Marshal(telegramMessage{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// FormatPrice renders 1234.5 EUR as "1,234.50 EUR".
func FormatPrice(amount decimal.Decimal, currency string) string {
	fixed := amount.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	if currency != "" {
		b.WriteString(" " + currency)
	}
	return b.String()
}

// NotifyPaymentReceived tells the admin chat that a transaction was paid.
func (s *TelegramService) NotifyPaymentReceived(ctx context.Context, p PaymentReceived) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>Payment received</b>
<b>Order:</b> %s
<b>Item:</b> %s/%s #%d
<b>Amount:</b> %s
<b>Payment:</b> %s`,
		html.EscapeString(p.Token),
		html.EscapeString(p.Component),
		html.EscapeString(p.PaymentArea),
		p.ItemID,
		FormatPrice(p.Amount, p.Currency),
		p.PaymentID,
	)
	return s.SendToAdmin(ctx, message)
}
