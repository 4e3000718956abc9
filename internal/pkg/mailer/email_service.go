package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"ai-interview-be/internal/pkg/logger"

	"gopkg.in/gomail.v2"
)

// RefundAlert is what an operator needs to reconcile a stuck consumption record.
type RefundAlert struct {
	RecordID  string
	UserID    string
	WorkType  string
	Bucket    string
	Reason    string
	Error     string
	Attempts  int
	StartedAt time.Time
	FailedAt  time.Time
}

type IEmailService interface {
	SendRefundFailureAlert(toEmail string, alert RefundAlert) error
}

// Sender is the part of gomail.Dialer the service needs.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type emailService struct {
	sender      Sender
	senderEmail string
	logger      logger.ILogger
}

func NewEmailService(host string, port int, username, password, senderEmail string, log logger.ILogger) IEmailService {
	return NewEmailServiceWithSender(gomail.NewDialer(host, port, username, password), senderEmail, log)
}

func NewEmailServiceWithSender(sender Sender, senderEmail string, log logger.ILogger) IEmailService {
	return &emailService{sender: sender, senderEmail: senderEmail, logger: log}
}

var refundAlertTemplate = template.Must(template.New("refund_alert").Parse(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2 style="color: #C62828;">Consumption refund failed</h2>
			<p>A debited unit of work could not be refunded after {{.Attempts}} attempts. The user's balance is short by one unit until the record is reconciled.</p>
			<table cellpadding="4">
				<tr><td><b>Record</b></td><td>{{.RecordID}}</td></tr>
				<tr><td><b>User</b></td><td>{{.UserID}}</td></tr>
				<tr><td><b>Work type</b></td><td>{{.WorkType}}</td></tr>
				<tr><td><b>Bucket</b></td><td>{{.Bucket}}</td></tr>
				<tr><td><b>Reason</b></td><td>{{.Reason}}</td></tr>
				<tr><td><b>Error</b></td><td>{{.Error}}</td></tr>
				<tr><td><b>Started</b></td><td>{{.StartedAt.Format "2006-01-02 15:04:05 MST"}}</td></tr>
				<tr><td><b>Failed</b></td><td>{{.FailedAt.Format "2006-01-02 15:04:05 MST"}}</td></tr>
			</table>
			<p>Run <code>ledgerctl abort {{.RecordID}}</code> once the store is healthy.</p>
		</div>
	`))

func (s *emailService) SendRefundFailureAlert(toEmail string, alert RefundAlert) error {
	if toEmail == "" {
		return fmt.Errorf("no operator email configured")
	}

	var body bytes.Buffer
	if err := refundAlertTemplate.Execute(&body, alert); err != nil {
		return fmt.Errorf("render refund alert: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("[CRITICAL] Refund failed for record %s", alert.RecordID))
	m.SetBody("text/html", body.String())

	if err := s.sender.DialAndSend(m); err != nil {
		s.logger.Error("MAILER", "Failed to send refund alert", map[string]interface{}{
			"to":        toEmail,
			"record_id": alert.RecordID,
			"error":     err.Error(),
		})
		return err
	}

	s.logger.Info("MAILER", "Refund alert sent", map[string]interface{}{"to": toEmail, "record_id": alert.RecordID})
	return nil
}
