package mailservice

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wrenhollow/chronicle/internal/common"
)

func newTestMailService(mb common.MessageConsumer, m Mailer) *MailService {
	ctx, cancel := context.WithCancel(context.Background())
	return &MailService{
		mb:     mb,
		m:      m,
		logger: slog.New(slog.NewTextHandler(os.Stdout, nil)),
		ctx:    ctx,
		cancel: cancel,
	}
}

func TestSendActivationEmail(t *testing.T) {
	mockMC := &MockMessageConsumer{
		Messages: map[common.BindingKey]string{
			common.AuthorCreatedKey: `{"Email": "new@example.com", "Token": "testtoken"}`,
		},
	}
	mockMailer := new(MockMailer)

	s := newTestMailService(mockMC, mockMailer)
	t.Cleanup(s.Close)

	s.SendActivationEmail()

	assert.Eventually(t, mockMailer.IsCalled, time.Second, 10*time.Millisecond)
	assert.Equal(t, "new@example.com", mockMailer.GetEmail())
	assert.Equal(t, "activation_email.html", mockMailer.GetTemplateFile())
}

func TestSendShareEmail(t *testing.T) {
	mockMC := &MockMessageConsumer{
		Messages: map[common.BindingKey]string{
			common.PostSharedKey: `{"Recipient": "friend@example.com", "SenderName": "Alex", "SenderEmail": "alex@example.com", "Comments": "", "PostTitle": "Going Postal", "PostURL": "http://localhost:8080/v1/archive/2024/7/1/going-postal"}`,
		},
	}
	mockMailer := new(MockMailer)

	s := newTestMailService(mockMC, mockMailer)
	t.Cleanup(s.Close)

	s.SendShareEmail()

	assert.Eventually(t, mockMailer.IsCalled, time.Second, 10*time.Millisecond)
	assert.Equal(t, "friend@example.com", mockMailer.GetEmail())
	assert.Equal(t, "share_email.html", mockMailer.GetTemplateFile())
}
