package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/aymanebs/emr-api/config"
)

type Service interface {
	// SendDeliverableNotification tells the consultation author that a
	// requested test has been fulfilled.
	SendDeliverableNotification(ctx context.Context, to, patientName, testName, kind string) error
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg config.SMTPConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendDeliverableNotification(_ context.Context, to, patientName, testName, kind string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("New %s result for %s", kind, patientName))
	m.SetBody("text/plain", fmt.Sprintf(
		"A %s fulfilling the requested test %q for patient %s has been uploaded and is available in the record.",
		kind, testName, patientName,
	))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}
	return nil
}

type noopService struct{}

// NewNoopService is used when SMTP is not configured.
func NewNoopService() Service {
	return noopService{}
}

func (noopService) SendDeliverableNotification(context.Context, string, string, string, string) error {
	return nil
}
