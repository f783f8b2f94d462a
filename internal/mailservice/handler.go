package mailservice

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/exp/rand"

	"github.com/wrenhollow/chronicle/internal/common"
)

func NewMailService(mb common.MessageConsumer, host, username, password, sender string, port int, logger *slog.Logger) *MailService {
	ctx, cancel := context.WithCancel(context.Background())
	return &MailService{
		mb:     mb,
		m:      NewMailer(host, port, username, password, sender, NewTemplate()),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SendActivationEmail consumes author.created events and mails the
// activation token to the new author.
func (s *MailService) SendActivationEmail() {
	msgs, err := s.mb.Consume(common.AuthorCreatedKey, common.MailExchange, common.AuthorCreatedQueue)
	if err != nil {
		s.logger.Error("could not consume message", slog.String("error", err.Error()))
		return
	}

	s.consume(msgs, "activation email", func(body []byte) (string, any, string, error) {
		var data activationData
		if err := json.Unmarshal(body, &data); err != nil {
			return "", nil, "", err
		}

		payload := struct {
			ActivationToken string
		}{
			ActivationToken: data.Token,
		}

		return data.Email, payload, "activation_email.html", nil
	})
}

// SendShareEmail consumes post.shared events and mails the fixed
// recommendation template to the recipient.
func (s *MailService) SendShareEmail() {
	msgs, err := s.mb.Consume(common.PostSharedKey, common.MailExchange, common.PostSharedQueue)
	if err != nil {
		s.logger.Error("could not consume message", slog.String("error", err.Error()))
		return
	}

	s.consume(msgs, "share email", func(body []byte) (string, any, string, error) {
		var data shareData
		if err := json.Unmarshal(body, &data); err != nil {
			return "", nil, "", err
		}

		return data.Recipient, data, "share_email.html", nil
	})
}

// consume drains a queue, decoding each delivery and sending the mail
// with exponential backoff and jitter. A delivery is acked either way once
// the retries are spent; the broker must not redeliver a poison message
// forever.
func (s *MailService) consume(msgs <-chan amqp.Delivery, kind string, decode func(body []byte) (recipient string, payload any, templateFile string, err error)) {
	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				recipient, payload, templateFile, err := decode(msg.Body)
				if err != nil {
					s.logger.Error("could not unmarshal message", slog.String("error", err.Error()))
					msg.Ack(false)
					continue
				}

				const maxRetries = 5
				const baseDelay = 500 * time.Millisecond

				var attempt int
				for attempt = 0; attempt < maxRetries; attempt++ {
					err = s.m.send(recipient, payload, templateFile)
					if err == nil {
						s.logger.Info(kind+" sent", slog.String("email", recipient))
						msg.Ack(false)
						break
					}

					delay := time.Duration(rand.Int63n(int64(baseDelay) << uint(attempt)))
					s.logger.Info("delaying "+kind, slog.String("email", recipient), slog.Int("attempt", attempt), slog.Duration("delay", delay))
					time.Sleep(delay)
				}

				if attempt == maxRetries {
					s.logger.Error("could not send "+kind, slog.String("email", recipient))
					msg.Ack(false)
				}

			case <-s.ctx.Done():
				s.logger.Info("stopping mail consumer due to context cancellation")
				return
			}
		}
	}()
}

func (s *MailService) Close() {
	s.cancel()
}
