// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/labadmin/core/logger"
)

// Message is a rendered mail, ready to be sent
type Message struct {
	Template string `json:"template"`
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Lang     string `json:"lang"`
	// RequestID is the id of the request which triggered the mail
	RequestID string `json:"request_id,omitempty"`
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer only logs messages. It is the mailer for development.
type LogMailer struct{}

// Send implements Mailer
func (LogMailer) Send(ctx context.Context, msg Message) error {
	logger.FromContext(ctx).Infof("mail %s to %s: %s", msg.Template, msg.To, msg.Subject)
	logger.FromContext(ctx).Debugln(msg.Body)
	return nil
}

// SMTPMailer sends messages through an SMTP server
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Send implements Mailer
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	if err := smtp.SendMail(addr, auth, msg.From, []string{msg.To}, composeMIME(msg)); err != nil {
		return fmt.Errorf("smtp %s: %w", addr, err)
	}
	return nil
}

// composeMIME returns msg as a html mail with headers
func composeMIME(msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + msg.From + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Language: " + msg.Lang + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// KafkaMailer publishes messages as JSON on a kafka topic, where a mail relay
// picks them up. Messages are keyed by recipient.
type KafkaMailer struct {
	writer *kafka.Writer
}

// NewKafkaMailer creates a mailer writing to topic on brokers
func NewKafkaMailer(brokers []string, topic string) *KafkaMailer {
	return &KafkaMailer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

// Send implements Mailer
func (m *KafkaMailer) Send(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return m.writer.WriteMessages(ctx, kafka.Message{Key: []byte(msg.To), Value: value})
}

// Close flushes and closes the kafka writer
func (m *KafkaMailer) Close() error {
	return m.writer.Close()
}
