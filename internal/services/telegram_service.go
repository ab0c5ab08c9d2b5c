package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// TelegramService handles sending admin notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	httpClient  *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to the specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}

	return nil
}

// OrderItemNotification is one line of a new-order notification.
type OrderItemNotification struct {
	Name     string
	Quantity int
	Price    float64
	Currency string
}

// OrderNotification describes a newly placed order.
type OrderNotification struct {
	OrderID       string
	Items         []OrderItemNotification
	TotalAmount   float64
	Currency      string
	CustomerName  string
	CustomerEmail string
	PaymentMethod string
}

// NotifyNewOrder tells the admin chat about a freshly placed order.
func (s *TelegramService) NotifyNewOrder(n OrderNotification) error {
	if s.adminChatID == "" {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("<b>New order</b>\n")
	sb.WriteString(fmt.Sprintf("Order: <code>%s</code>\n", n.OrderID))
	sb.WriteString(fmt.Sprintf("Customer: %s (%s)\n", n.CustomerName, n.CustomerEmail))
	sb.WriteString(fmt.Sprintf("Payment: %s\n\n", n.PaymentMethod))
	for _, item := range n.Items {
		sb.WriteString(fmt.Sprintf("• %s ×%d — %.2f %s\n", item.Name, item.Quantity, item.Price, item.Currency))
	}
	sb.WriteString(fmt.Sprintf("\n<b>Total: %.2f %s</b>", n.TotalAmount, n.Currency))

	return s.SendMessage(s.adminChatID, sb.String())
}

// PaymentSuccessNotification describes a confirmed payment.
type PaymentSuccessNotification struct {
	OrderID  string
	Amount   float64
	Currency string
}

// NotifyPaymentSuccess tells the admin chat that an order was paid.
func (s *TelegramService) NotifyPaymentSuccess(n PaymentSuccessNotification) error {
	if s.adminChatID == "" {
		return nil
	}

	text := fmt.Sprintf(
		"<b>Payment received</b>\nOrder: <code>%s</code>\nAmount: %.2f %s",
		n.OrderID, n.Amount, n.Currency,
	)

	return s.SendMessage(s.adminChatID, text)
}
