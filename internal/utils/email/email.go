package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/ironbank/ironbank/internal/config"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// Enabled reports whether SMTP is configured; without a host the sender
// silently drops mail.
func (s *Sender) Enabled() bool {
	return s.cfg.SMTPHost != ""
}

// SendOverdraftWarning notifies the owner that their account is overdrawn
// and that a standing penalty has been applied.
func (s *Sender) SendOverdraftWarning(to, username string, balance int64, penalty float64, day int) error {
	if !s.Enabled() {
		return nil
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Overdraft Warning"

	body := fmt.Sprintf(
		"Dear %s,\n\n", username,
	)
	body += fmt.Sprintf(
		"Your bank account is overdrawn as of day %d. Current balance: %d.\n"+
			"A standing penalty of %.0f has been applied to your clan.\n"+
			"Please deposit funds to cover your loan payments and avoid further penalties.\n",
		day, balance, penalty,
	)
	body += "\nBest regards,\nThe Iron Bank"
	e.Text = []byte(body)

	return s.send(e)
}

// SendSettlementSummary reports the outcome of a daily settlement pass to
// the account owner.
func (s *Sender) SendSettlementSummary(to, username string, day int, purseShare, accountShare, totalPayments int64) error {
	if !s.Enabled() {
		return nil
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Daily Settlement - Day %d", day)

	body := fmt.Sprintf(
		"Dear %s,\n\n", username,
	)
	body += fmt.Sprintf(
		"Your account was settled for day %d.\n"+
			"Interests sent to your purse: %d\n"+
			"Interests credited to your account: %d\n"+
			"Loan payments collected: %d\n"+
			"Settlement time: %s\n",
		day, purseShare, accountShare, totalPayments,
		time.Now().Format("2006-01-02 15:04:05"),
	)
	body += "\nBest regards,\nThe Iron Bank"
	e.Text = []byte(body)

	return s.send(e)
}

func (s *Sender) send(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %v: %v", e.To, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %v: %s", e.To, e.Subject)
	return nil
}
