package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"sync"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/clawdshartavenger/alta-parking-app/internal/logbus"
	"github.com/clawdshartavenger/alta-parking-app/internal/model"
	"github.com/clawdshartavenger/alta-parking-app/internal/store/sqlite"
)

// EmailNotifier sends a confirmation email when a booking lands. Delivery
// runs on its own goroutine behind a queue so SMTP latency never touches the
// monitor loop.
type EmailNotifier struct {
	store *sqlite.Store
	bus   *logbus.Bus

	mu     sync.Mutex
	queue  chan BookedEvent
	ctx    context.Context
	cancel func()
	wg     sync.WaitGroup
}

func NewEmailNotifier(store *sqlite.Store, bus *logbus.Bus, queueSize int) *EmailNotifier {
	if queueSize <= 0 {
		queueSize = 32
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &EmailNotifier{
		store:  store,
		bus:    bus,
		queue:  make(chan BookedEvent, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	n.wg.Add(1)
	go n.loop()
	return n
}

func (n *EmailNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	cancel := n.cancel
	n.cancel = nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *EmailNotifier) NotifyBooked(_ context.Context, evt BookedEvent) {
	select {
	case n.queue <- evt:
	default:
		if n.bus != nil {
			n.bus.Log("warn", "email notification dropped: queue full", map[string]any{
				"date":  evt.Date,
				"runId": evt.RunID,
			})
		}
	}
}

func (n *EmailNotifier) loop() {
	defer n.wg.Done()
	for {
		select {
		case <-n.ctx.Done():
			return
		case evt := <-n.queue:
			n.handle(evt)
		}
	}
}

func (n *EmailNotifier) handle(evt BookedEvent) {
	if n.store == nil {
		return
	}

	settings, ok, err := n.store.GetEmailSettings(n.ctx)
	if err != nil {
		if n.bus != nil {
			n.bus.Log("warn", "load email settings failed", map[string]any{"error": err.Error()})
		}
		return
	}
	if !ok || !settings.Enabled {
		if n.bus != nil {
			n.bus.Log("info", "email notifications disabled", map[string]any{"date": evt.Date})
		}
		return
	}
	if err := validateEmailSettings(settings); err != nil {
		if n.bus != nil {
			n.bus.Log("warn", "invalid email settings", map[string]any{"error": err.Error()})
		}
		return
	}

	if err := SendBookedEmail(n.ctx, settings, evt); err != nil {
		if n.bus != nil {
			n.bus.Log("warn", "send booking email failed", map[string]any{
				"error": err.Error(),
				"date":  evt.Date,
			})
		}
		return
	}
	if n.bus != nil {
		n.bus.Log("info", "booking email sent", map[string]any{
			"date": evt.Date,
			"to":   strings.TrimSpace(settings.Email),
		})
	}
}

func validateEmailSettings(s model.EmailSettings) error {
	email := strings.TrimSpace(s.Email)
	if email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("invalid email")
	}
	if strings.TrimSpace(s.AuthCode) == "" {
		return errors.New("authCode is required")
	}
	return nil
}

// SendBookedEmail delivers one confirmation email synchronously.
func SendBookedEmail(ctx context.Context, settings model.EmailSettings, evt BookedEvent) error {
	if err := validateEmailSettings(settings); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	email := strings.TrimSpace(settings.Email)
	host, port, useSSL, err := smtpConfigForEmail(email)
	if err != nil {
		return err
	}

	htmlBody, textBody, err := buildBookedBody(evt)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(email, "Alta Parking Monitor"))
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Parking booked for "+evt.Date)
	msg.SetBody("text/plain", textBody)
	msg.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(host, port, email, strings.TrimSpace(settings.AuthCode))
	d.SSL = useSSL
	return d.DialAndSend(msg)
}

// smtpConfigForEmail infers the submission endpoint from the recipient's own
// domain so users only configure an address and an app password.
func smtpConfigForEmail(email string) (host string, port int, useSSL bool, err error) {
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
		return "", 0, false, errors.New("invalid email format")
	}
	domain := strings.ToLower(strings.TrimSpace(parts[1]))

	switch {
	case domain == "gmail.com" || strings.HasSuffix(domain, ".gmail.com"):
		return "smtp.gmail.com", 587, false, nil
	case domain == "outlook.com" || strings.HasSuffix(domain, ".outlook.com") ||
		domain == "hotmail.com" || strings.HasSuffix(domain, ".hotmail.com") ||
		domain == "live.com" || strings.HasSuffix(domain, ".live.com"):
		return "smtp.office365.com", 587, false, nil
	case domain == "yahoo.com" || strings.HasSuffix(domain, ".yahoo.com"):
		return "smtp.mail.yahoo.com", 465, true, nil
	case domain == "icloud.com" || strings.HasSuffix(domain, ".icloud.com") ||
		domain == "me.com" || strings.HasSuffix(domain, ".me.com"):
		return "smtp.mail.me.com", 587, false, nil
	default:
		return "smtp." + domain, 465, true, nil
	}
}

var bookedHTMLTpl = template.Must(template.New("booked").Parse(`
<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>Parking booked</title>
  </head>
  <body style="margin:0;padding:24px;background:#f6f8fb;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Arial,sans-serif;">
    <div style="max-width:560px;margin:0 auto;background:#ffffff;border:1px solid #e6e8ef;border-radius:12px;overflow:hidden;">
      <div style="padding:18px 22px;background:#0284c7;color:#ffffff;font-size:16px;font-weight:700;">
        Parking booked
      </div>
      <div style="padding:22px;color:#111827;font-size:14px;line-height:1.6;">
        <p>Your parking reservation went through.</p>
        <table role="presentation" cellspacing="0" cellpadding="0" style="width:100%;border-collapse:collapse;">
          {{ range .Rows }}
          <tr>
            <td style="width:140px;padding:8px 0;color:#6b7280;font-size:12px;">{{ .K }}</td>
            <td style="padding:8px 0;font-weight:600;font-size:12px;">{{ .V }}</td>
          </tr>
          {{ end }}
        </table>
        <p style="margin-top:16px;color:#9ca3af;font-size:12px;">Sent automatically by the parking monitor.</p>
      </div>
    </div>
  </body>
</html>
`))

type rowKV struct {
	K string
	V string
}

func buildBookedBody(evt BookedEvent) (htmlBody string, textBody string, err error) {
	at := time.Now()
	if evt.At > 0 {
		at = time.UnixMilli(evt.At)
	}

	rows := []rowKV{
		{K: "Date", V: evt.Date},
		{K: "Booked at", V: at.Format("2006-01-02 15:04:05")},
	}
	if strings.TrimSpace(evt.LicensePlate) != "" {
		rows = append(rows, rowKV{K: "License plate", V: evt.LicensePlate})
	}
	if strings.TrimSpace(evt.Email) != "" {
		rows = append(rows, rowKV{K: "Account", V: evt.Email})
	}

	var buf bytes.Buffer
	if err := bookedHTMLTpl.Execute(&buf, struct{ Rows []rowKV }{Rows: rows}); err != nil {
		return "", "", err
	}

	text := new(strings.Builder)
	text.WriteString("Parking booked\n")
	for _, r := range rows {
		fmt.Fprintf(text, "%s: %s\n", r.K, r.V)
	}
	return buf.String(), text.String(), nil
}
