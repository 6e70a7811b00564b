package emailsender

import (
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"bloodlink/config"

	"gopkg.in/gomail.v2"
)

// Mailer is what the reminder subscriber needs from an SMTP client.
type Mailer interface {
	SendReminderEmail(recipientEmail string, data ReminderData) error
}

// ReminderData fills the "you can donate again" mail.
type ReminderData struct {
	Name             string
	LastDonationDate string
	Title            string
	Description      string
}

type EmailSender struct {
	SmtpServer *gomail.Dialer
	fromEmail  string
}

func New(cfg config.SMTPConfig) (*EmailSender, error) {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, os.Getenv("SMTP_PASSWORD"))

	conn, err := d.Dial()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server %s:%d for user %s: %w", cfg.Host, cfg.Port, cfg.Username, err)
	}
	defer conn.Close()

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &EmailSender{SmtpServer: d, fromEmail: from}, nil
}

var reminderTemplate = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html lang="ca">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: sans-serif; background-color: #f4f4f4; margin: 0; padding: 20px; color: #333; }
        .container { max-width: 600px; margin: auto; background: white; padding: 20px; border-radius: 8px; }
        h1 { color: #b3001b; font-size: 26px; text-align: center; }
        p { font-size: 16px; line-height: 1.6; }
        .footer { font-size: 12px; color: #777; text-align: center; margin-top: 30px; border-top: 1px solid #eee; padding-top: 15px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>Hola{{if .Name}} {{.Name}}{{end}}!</p>
        <p>{{.Description}}</p>
        {{if .LastDonationDate}}<p>La teva última donació va ser el {{.LastDonationDate}}.</p>{{end}}
        <p>Reserva una cita al teu centre de donació habitual des de l'aplicació.</p>
    </div>
    <div class="footer">
        <p>© {{.Year}} BloodLink</p>
    </div>
</body>
</html>`))

func (e *EmailSender) SendReminderEmail(recipientEmail string, data ReminderData) error {
	var body strings.Builder
	err := reminderTemplate.Execute(&body, struct {
		ReminderData
		Year int
	}{data, time.Now().Year()})
	if err != nil {
		return fmt.Errorf("failed to render reminder email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.fromEmail)
	m.SetHeader("To", recipientEmail)
	m.SetHeader("Subject", data.Title)
	m.SetBody("text/html", body.String())

	if err := e.SmtpServer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send reminder email to %s: %w", recipientEmail, err)
	}
	return nil
}
