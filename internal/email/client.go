// Package email provides native IMAP and SMTP mail access for the
// assistant: search and read over IMAP, markdown-composed sending over
// SMTP.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Config holds the single mail account the assistant operates on.
type Config struct {
	IMAPServer string // host:port, implicit TLS
	SMTPServer string // host:port; port 587 upgrades via STARTTLS
	Username   string
	Password   string
	From       string // "Name <addr@host>" used on outbound mail
}

// Summary is the metadata line shown for a message in search results.
type Summary struct {
	UID     uint32
	Date    time.Time
	From    string
	Subject string
	Unread  bool
}

// Message is a fully fetched email with its body flattened to text.
type Message struct {
	Summary
	To   []string
	Body string
}

// Client is a single-account IMAP client. Access is mutex-serialized;
// the connection is established lazily and re-established when stale.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	client *imapclient.Client
}

// NewClient creates an IMAP client for the configured account.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.client != nil {
		_ = c.client.Close()
		c.client = nil
	}

	host, _, err := net.SplitHostPort(c.cfg.IMAPServer)
	if err != nil {
		return fmt.Errorf("imap server %q: %w", c.cfg.IMAPServer, err)
	}

	client, err := imapclient.DialTLS(c.cfg.IMAPServer, &imapclient.Options{
		TLSConfig: &tls.Config{ServerName: host},
	})
	if err != nil {
		return fmt.Errorf("dial IMAP %s: %w", c.cfg.IMAPServer, err)
	}

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return fmt.Errorf("login as %s: %w", c.cfg.Username, err)
	}

	c.client = client
	c.logger.Info("IMAP connected", "server", c.cfg.IMAPServer, "user", c.cfg.Username)
	return nil
}

// ensureConnected reconnects when the connection is gone or stale.
// Caller must hold c.mu.
func (c *Client) ensureConnected(ctx context.Context) error {
	if c.client != nil {
		if err := c.client.Noop().Wait(); err == nil {
			return nil
		}
		c.logger.Debug("IMAP connection stale, reconnecting", "server", c.cfg.IMAPServer)
	}
	return c.connectLocked(ctx)
}

// Ping verifies the account credentials and connectivity.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureConnected(ctx)
}

// Close logs out and drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// selectInbox selects INBOX. Caller must hold c.mu.
func (c *Client) selectInbox() error {
	if _, err := c.client.Select("INBOX", nil).Wait(); err != nil {
		return fmt.Errorf("select INBOX: %w", err)
	}
	return nil
}

// formatAddress renders an IMAP address as "Name <user@host>" or the
// bare address when no display name is set.
func formatAddress(addr imap.Address) string {
	email := addr.Addr()
	if addr.Name != "" {
		return fmt.Sprintf("%s <%s>", addr.Name, email)
	}
	return email
}

func hasSeenFlag(flags []imap.Flag) bool {
	for _, f := range flags {
		if strings.EqualFold(string(f), string(imap.FlagSeen)) {
			return true
		}
	}
	return false
}
