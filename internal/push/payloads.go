package push

import (
	"errors"
	"strings"
)

// Message is one push notification addressed to a device token.
type Message struct {
	Token string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

func (m Message) validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return errors.New("push: device token required")
	}
	if strings.TrimSpace(m.Title) == "" && strings.TrimSpace(m.Body) == "" {
		return errors.New("push: title or body required")
	}
	return nil
}

// Receipt is the gateway's per-message outcome.
type Receipt struct {
	OK        bool   `json:"ok"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type gatewayTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

type gatewayResponse struct {
	Data []gatewayTicket `json:"data"`
}

func (t gatewayTicket) receipt() Receipt {
	if t.Status == "ok" {
		return Receipt{OK: true, MessageID: t.ID}
	}
	msg := t.Message
	if msg == "" {
		msg = "gateway rejected message"
	}
	return Receipt{Error: msg}
}
