// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/clinio/crm-api/config"
	"github.com/clinio/crm-api/models"
)

// NotificationService handles sending messages to customers over the supported channels
type NotificationService interface {
	Send(ctx context.Context, channel models.MessageChannel, recipient, message string) error
	SendSMS(ctx context.Context, recipient, message string) error
	SendWhatsApp(ctx context.Context, recipient, message string) error
	SendEmail(ctx context.Context, email, subject, message string, attachment []byte, attachmentName string) error
}

// SMSProvider interface for SMS sending
type SMSProvider interface {
	SendSMS(ctx context.Context, recipient, message string) error
}

// WhatsAppProvider interface for WhatsApp sending
type WhatsAppProvider interface {
	SendWhatsApp(ctx context.Context, recipient, message string) error
}

// EmailProvider interface for email sending
type EmailProvider interface {
	SendEmail(ctx context.Context, email, subject, message string, attachment []byte, attachmentName string) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	smsProvider      SMSProvider
	whatsappProvider WhatsAppProvider
	emailProvider    EmailProvider
}

// NewNotificationService creates a new notification service
func NewNotificationService(smsProvider SMSProvider, whatsappProvider WhatsAppProvider, emailProvider EmailProvider) NotificationService {
	return &NotificationServiceImpl{
		smsProvider:      smsProvider,
		whatsappProvider: whatsappProvider,
		emailProvider:    emailProvider,
	}
}

// Send dispatches a message on the given channel
func (s *NotificationServiceImpl) Send(ctx context.Context, channel models.MessageChannel, recipient, message string) error {
	switch channel {
	case models.ChannelSMS:
		return s.SendSMS(ctx, recipient, message)
	case models.ChannelWhatsApp:
		return s.SendWhatsApp(ctx, recipient, message)
	default:
		return fmt.Errorf("unsupported channel: %s", channel)
	}
}

// SendSMS sends an SMS message to the specified phone number
func (s *NotificationServiceImpl) SendSMS(ctx context.Context, recipient, message string) error {
	if s.smsProvider == nil {
		return fmt.Errorf("SMS provider not configured")
	}
	if recipient == "" {
		return fmt.Errorf("recipient phone number is empty")
	}
	return s.smsProvider.SendSMS(ctx, recipient, message)
}

// SendWhatsApp sends a WhatsApp message to the specified phone number
func (s *NotificationServiceImpl) SendWhatsApp(ctx context.Context, recipient, message string) error {
	if s.whatsappProvider == nil {
		return fmt.Errorf("WhatsApp provider not configured")
	}
	if recipient == "" {
		return fmt.Errorf("recipient phone number is empty")
	}
	return s.whatsappProvider.SendWhatsApp(ctx, recipient, message)
}

// SendEmail sends an email, optionally with a single attachment
func (s *NotificationServiceImpl) SendEmail(ctx context.Context, email, subject, message string, attachment []byte, attachmentName string) error {
	if s.emailProvider == nil {
		return fmt.Errorf("email provider not configured")
	}
	if len(email) == 0 || !contains(email, "@") {
		return fmt.Errorf("invalid email address: %s", email)
	}
	return s.emailProvider.SendEmail(ctx, email, subject, message, attachment, attachmentName)
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// HTTPSMSProvider sends SMS through the configured gateway API
type HTTPSMSProvider struct {
	config *config.SMSConfig
	client *http.Client
}

// smsRequest represents the request payload for the SMS gateway
type smsRequest struct {
	SrcNum     string `json:"srcNum"`
	Recipient  string `json:"recipient"`
	Body       string `json:"body"`
	RetryCount int    `json:"retryCount"`
}

// NewHTTPSMSProvider creates a gateway-backed SMS provider
func NewHTTPSMSProvider(cfg *config.SMSConfig) SMSProvider {
	return &HTTPSMSProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *HTTPSMSProvider) SendSMS(ctx context.Context, recipient, message string) error {
	payload, err := json.Marshal(smsRequest{
		SrcNum:     p.config.SourceNumber,
		Recipient:  recipient,
		Body:       message,
		RetryCount: p.config.RetryCount,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.APIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create SMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("SMS gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("SMS gateway returned status %d", resp.StatusCode)
	}

	return nil
}

// HTTPWhatsAppProvider sends WhatsApp messages through the configured Business API
type HTTPWhatsAppProvider struct {
	config *config.WhatsAppConfig
	client *http.Client
}

// whatsappRequest represents the request payload for the WhatsApp Business API
type whatsappRequest struct {
	To   string `json:"to"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// NewHTTPWhatsAppProvider creates a Business-API-backed WhatsApp provider
func NewHTTPWhatsAppProvider(cfg *config.WhatsAppConfig) WhatsAppProvider {
	return &HTTPWhatsAppProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *HTTPWhatsAppProvider) SendWhatsApp(ctx context.Context, recipient, message string) error {
	var body whatsappRequest
	body.To = recipient
	body.Type = "text"
	body.Text.Body = message

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal WhatsApp request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.APIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create WhatsApp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("WhatsApp API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("WhatsApp API returned status %d", resp.StatusCode)
	}

	return nil
}

// MockMessage represents a message recorded by a mock provider
type MockMessage struct {
	Recipient string
	Message   string
	SentAt    time.Time
}

// MockSMSProvider implements SMSProvider for testing
type MockSMSProvider struct {
	mu           sync.Mutex
	SentMessages []MockMessage
}

func NewMockSMSProvider() SMSProvider {
	return &MockSMSProvider{
		SentMessages: make([]MockMessage, 0),
	}
}

func (p *MockSMSProvider) SendSMS(ctx context.Context, recipient, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SentMessages = append(p.SentMessages, MockMessage{
		Recipient: recipient,
		Message:   message,
		SentAt:    time.Now().UTC(),
	})
	log.Printf("SMS sent to %s: %s", recipient, message)
	return nil
}

// GetSentMessages returns all recorded mock messages
func (p *MockSMSProvider) GetSentMessages() []MockMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]MockMessage(nil), p.SentMessages...)
}

// ClearSentMessages clears the recorded messages list
func (p *MockSMSProvider) ClearSentMessages() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SentMessages = p.SentMessages[:0]
}

// MockWhatsAppProvider implements WhatsAppProvider for testing
type MockWhatsAppProvider struct {
	mu           sync.Mutex
	SentMessages []MockMessage
}

func NewMockWhatsAppProvider() WhatsAppProvider {
	return &MockWhatsAppProvider{
		SentMessages: make([]MockMessage, 0),
	}
}

func (p *MockWhatsAppProvider) SendWhatsApp(ctx context.Context, recipient, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SentMessages = append(p.SentMessages, MockMessage{
		Recipient: recipient,
		Message:   message,
		SentAt:    time.Now().UTC(),
	})
	log.Printf("WhatsApp message sent to %s: %s", recipient, message)
	return nil
}

// GetSentMessages returns all recorded mock messages
func (p *MockWhatsAppProvider) GetSentMessages() []MockMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]MockMessage(nil), p.SentMessages...)
}

// ClearSentMessages clears the recorded messages list
func (p *MockWhatsAppProvider) ClearSentMessages() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SentMessages = p.SentMessages[:0]
}

// MockEmail represents an email recorded by the mock provider
type MockEmail struct {
	Email          string
	Subject        string
	Message        string
	Attachment     []byte
	AttachmentName string
	SentAt         time.Time
}

// MockEmailProvider implements EmailProvider for testing
type MockEmailProvider struct {
	mu         sync.Mutex
	SentEmails []MockEmail
}

func NewMockEmailProvider() EmailProvider {
	return &MockEmailProvider{
		SentEmails: make([]MockEmail, 0),
	}
}

func (p *MockEmailProvider) SendEmail(ctx context.Context, email, subject, message string, attachment []byte, attachmentName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SentEmails = append(p.SentEmails, MockEmail{
		Email:          email,
		Subject:        subject,
		Message:        message,
		Attachment:     append([]byte(nil), attachment...),
		AttachmentName: attachmentName,
		SentAt:         time.Now().UTC(),
	})
	log.Printf("Email sent to %s [%s] (%d attachment bytes): %s", email, subject, len(attachment), message)
	return nil
}

// GetSentEmails returns all recorded mock emails
func (p *MockEmailProvider) GetSentEmails() []MockEmail {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]MockEmail(nil), p.SentEmails...)
}

// SMTPEmailProvider sends email through an SMTP relay
type SMTPEmailProvider struct {
	config *config.EmailConfig
}

// NewSMTPEmailProvider creates an SMTP-backed email provider
func NewSMTPEmailProvider(cfg *config.EmailConfig) EmailProvider {
	return &SMTPEmailProvider{config: cfg}
}

func (p *SMTPEmailProvider) SendEmail(ctx context.Context, email, subject, message string, attachment []byte, attachmentName string) error {
	// Relay through the configured HTTP email gateway rather than speaking raw SMTP;
	// the gateway handles MIME assembly for attachments.
	payload, err := json.Marshal(map[string]any{
		"from":            p.config.FromAddress,
		"to":              email,
		"subject":         subject,
		"body":            message,
		"attachment":      attachment,
		"attachment_name": attachmentName,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.APIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("email gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email gateway returned status %d", resp.StatusCode)
	}

	return nil
}
