package alerting

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"drawdownwatch/internal/asset"
)

// ErrDelivery wraps any failure to hand a message to the sink.
var ErrDelivery = errors.New("alerting: delivery failed")

// Notifier 定义告警输送接口。
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// AlertEvent 封装一次跌幅告警的上下文。
type AlertEvent struct {
	Asset     asset.ID
	Current   decimal.Decimal
	Peak      decimal.Decimal
	DropPct   decimal.Decimal
	Threshold decimal.Decimal
	At        time.Time
}

// RenderAlert formats an alert as an email subject and body.
func RenderAlert(ev AlertEvent) (string, string) {
	name := ev.Asset.DisplayName()
	subject := fmt.Sprintf("%s Alert: %s%% Drop from Peak", name, ev.DropPct.StringFixed(1))

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("%s has dropped %s%% from 3-month peak of %s to current price %s\n",
		name, ev.DropPct.StringFixed(1), ev.Peak.StringFixed(2), ev.Current.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Threshold: %s%%\n", ev.Threshold.StringFixed(1)))
	if !ev.At.IsZero() {
		builder.WriteString(fmt.Sprintf("Time: %s\n", ev.At.UTC().Format(time.RFC3339)))
	}
	return subject, builder.String()
}

// EmailOptions configure SMTP delivery.
type EmailOptions struct {
	Sender    string
	Password  string
	Recipient string
	Host      string
	Port      int
	Timeout   time.Duration
}

// Configured reports whether all credentials needed to send are present.
func (o EmailOptions) Configured() bool {
	return o.Sender != "" && o.Password != "" && o.Recipient != ""
}

// EmailNotifier 通过 SMTP (STARTTLS + PLAIN) 发送邮件。
type EmailNotifier struct {
	opts   EmailOptions
	logger zerolog.Logger
	// deliver is smtpDeliver outside of tests.
	deliver func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier 构造邮件告警器。
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) *EmailNotifier {
	if opts.Host == "" {
		opts.Host = "smtp.gmail.com"
	}
	if opts.Port <= 0 {
		opts.Port = 587
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	n := &EmailNotifier{
		opts:   opts,
		logger: logger.With().Str("component", "alert_email").Logger(),
	}
	n.deliver = n.smtpDeliver
	return n
}

// Send 投递一封纯文本邮件。
func (n *EmailNotifier) Send(ctx context.Context, subject, body string) error {
	addr := net.JoinHostPort(n.opts.Host, strconv.Itoa(n.opts.Port))
	auth := smtp.PlainAuth("", n.opts.Sender, n.opts.Password, n.opts.Host)
	msg := buildMessage(n.opts.Sender, n.opts.Recipient, subject, body)

	ctx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
	defer cancel()

	if err := n.deliver(ctx, addr, auth, n.opts.Sender, []string{n.opts.Recipient}, msg); err != nil {
		return fmt.Errorf("%w: smtp %s: %v", ErrDelivery, addr, err)
	}

	n.logger.Info().Str("subject", subject).Msg("email sent")
	return nil
}

// smtpDeliver is smtp.SendMail over a connection bound to ctx: the dial
// honours ctx and the connection deadline is ctx's deadline, so an expired
// ctx also closes a stalled session.
func (n *EmailNotifier) smtpDeliver(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	// 调用方取消时立即打断阻塞中的读写
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	client, err := smtp.NewClient(conn, n.opts.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: n.opts.Host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(a); err != nil {
				return err
			}
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	builder := strings.Builder{}
	builder.WriteString("From: " + from + "\r\n")
	builder.WriteString("To: " + to + "\r\n")
	builder.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(builder.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// LogNotifier writes messages to the log. It stands in for the email sink
// when no credentials are configured and never fails.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a log-only notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Send logs subject and body at warn level.
func (n *LogNotifier) Send(ctx context.Context, subject, body string) error {
	n.logger.Warn().Str("subject", subject).Str("body", body).Msg("email not configured")
	return nil
}

// New returns the email notifier when credentials are complete and the log
// notifier otherwise.
func New(opts EmailOptions, logger zerolog.Logger) Notifier {
	if opts.Configured() {
		return NewEmailNotifier(opts, logger)
	}
	return NewLogNotifier(logger)
}

var (
	_ Notifier = (*EmailNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
