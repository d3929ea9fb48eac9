package action

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nightwatch/nightwatch/pkg/log"
)

// emailAction sends the transition report by SMTP.
type emailAction struct {
	smtpAddr string
	login    string
	password string

	fromAddr string
	toAddrs  []string
	ccAddrs  []string

	subject        string
	header         string
	contentSuccess string
	contentFailed  string
	signature      string
	logger         zerolog.Logger
}

func emailSpec() Spec {
	return Spec{
		New: newEmailAction,
		Mandatory: []string{
			"from_addr", // sender address
			"to_addrs",  // recipient address or list of addresses
		},
		Optional: []string{
			"smtp_addr",       // host:port of the SMTP server, default localhost:25
			"smtp_login",      // SMTP auth login
			"smtp_password",   // SMTP auth password
			"cc_addrs",        // carbon copy address or list of addresses
			"subject",         // message subject
			"header",          // first paragraph of the message body
			"content_success", // paragraph used on a recovery edge
			"content_failed",  // paragraph used on a failure edge
			"signature",       // closing paragraph
		},
	}
}

func newEmailAction(cfg map[string]any) (Action, error) {
	a := &emailAction{
		smtpAddr:       stringOption(cfg, "smtp_addr", "localhost:25"),
		login:          stringOption(cfg, "smtp_login", ""),
		password:       stringOption(cfg, "smtp_password", ""),
		fromAddr:       stringOption(cfg, "from_addr", ""),
		toAddrs:        stringsOption(cfg, "to_addrs"),
		ccAddrs:        stringsOption(cfg, "cc_addrs"),
		subject:        stringOption(cfg, "subject", "night-watch notification"),
		header:         stringOption(cfg, "header", ""),
		contentSuccess: stringOption(cfg, "content_success", "The monitored value is back to normal for task"),
		contentFailed:  stringOption(cfg, "content_failed", "The monitored value is out of bounds for task"),
		signature:      stringOption(cfg, "signature", "-- night-watch"),
		logger:         log.WithAction("email"),
	}

	if len(a.toAddrs) == 0 {
		return nil, configErrorf("email", "parameter %q must be an address or a list of addresses", "to_addrs")
	}
	return a, nil
}

func (a *emailAction) Process(ctx context.Context, report Report) error {
	var auth smtp.Auth
	if a.login != "" {
		host := a.smtpAddr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", a.login, a.password, host)
	}

	recipients := append(append([]string{}, a.toAddrs...), a.ccAddrs...)
	msg := a.buildMessage(report)

	if err := smtp.SendMail(a.smtpAddr, auth, a.fromAddr, recipients, msg); err != nil {
		return fmt.Errorf("send mail via %s: %w", a.smtpAddr, err)
	}

	a.logger.Info().
		Str("task", report.Task).
		Bool("success", report.Success).
		Strs("to", a.toAddrs).
		Msg("email sent")
	return nil
}

func (a *emailAction) buildMessage(report Report) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", a.fromAddr)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(a.toAddrs, ", "))
	if len(a.ccAddrs) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(a.ccAddrs, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n\r\n", a.subject)

	b.WriteString("Hello,\r\n\r\n")
	if a.header != "" {
		b.WriteString(a.header)
		b.WriteString("\r\n\r\n")
	}
	if report.Success {
		fmt.Fprintf(&b, "%s %q.\r\n\r\n", a.contentSuccess, report.Task)
	} else {
		fmt.Fprintf(&b, "%s %q.\r\n\r\n", a.contentFailed, report.Task)
	}

	for i := range report.Values {
		fmt.Fprintf(&b, "  - observed %v, expected %s %v\r\n",
			report.Values[i], report.Conditions[i], report.Thresholds[i])
	}
	b.WriteString("\r\n")
	b.WriteString(a.signature)
	b.WriteString("\r\n")

	return []byte(b.String())
}
