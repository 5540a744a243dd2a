package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

const smtpDialTimeout = 30 * time.Second

// Send delivers a composed RFC 5322 message through the configured
// SMTP server. Port 587 upgrades with STARTTLS, anything else uses
// implicit TLS. Each call opens and closes its own connection.
func (c *Client) Send(ctx context.Context, recipients []string, msg []byte) error {
	host, port, err := net.SplitHostPort(c.cfg.SMTPServer)
	if err != nil {
		return fmt.Errorf("smtp server %q: %w", c.cfg.SMTPServer, err)
	}
	startTLS := port == "587"

	dialTimeout := smtpDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < dialTimeout {
			dialTimeout = remaining
		}
	}
	dialer := &net.Dialer{Timeout: dialTimeout}
	tlsCfg := &tls.Config{ServerName: host}

	var client *smtp.Client
	if startTLS {
		conn, err := dialer.DialContext(ctx, "tcp", c.cfg.SMTPServer)
		if err != nil {
			return fmt.Errorf("dial SMTP %s: %w", c.cfg.SMTPServer, err)
		}
		client, err = smtp.NewClient(conn, host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp client on %s: %w", c.cfg.SMTPServer, err)
		}
	} else {
		conn, err := tls.DialWithDialer(dialer, "tcp", c.cfg.SMTPServer, tlsCfg)
		if err != nil {
			return fmt.Errorf("dial SMTPS %s: %w", c.cfg.SMTPServer, err)
		}
		client, err = smtp.NewClient(conn, host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp client on %s: %w", c.cfg.SMTPServer, err)
		}
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("EHLO: %w", err)
	}
	if startTLS {
		if err := client.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	}
	if c.cfg.Username != "" && c.cfg.Password != "" {
		auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("AUTH: %w", err)
		}
	}

	if err := client.Mail(bareAddress(c.cfg.From)); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(bareAddress(rcpt)); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close DATA: %w", err)
	}

	return client.Quit()
}

// bareAddress strips a "Name <addr>" wrapper down to the address.
func bareAddress(s string) string {
	if open := strings.LastIndexByte(s, '<'); open >= 0 && strings.HasSuffix(s, ">") {
		return s[open+1 : len(s)-1]
	}
	return s
}
