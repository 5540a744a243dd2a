package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// maxBodySize caps the text handed to the model per message.
const maxBodySize = 16 * 1024

// maxRawMessageSize caps how much of the RFC822 literal gets buffered.
// The rest of the literal is drained to keep the IMAP stream in sync.
const maxRawMessageSize = 5 * 1024 * 1024

// drainLiteral discards an IMAP literal so the protocol stream does
// not stall on an unread body section.
func drainLiteral(r imap.LiteralReader) {
	if r == nil {
		return
	}
	_, _ = io.Copy(io.Discard, r)
}

// Read fetches a single INBOX message by UID, walking its MIME
// structure for a readable body. HTML-only messages are flattened to
// plain text. Reading marks the message \Seen.
func (c *Client) Read(ctx context.Context, uid uint32) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	if err := c.selectInbox(); err != nil {
		return nil, err
	}

	uidSet := imap.UIDSet{}
	uidSet.AddNum(imap.UID(uid))

	fetchCmd := c.client.Fetch(uidSet, &imap.FetchOptions{
		UID:      true,
		Envelope: true,
		Flags:    true,
		BodySection: []*imap.FetchItemBodySection{
			{Peek: false},
		},
	})

	data := fetchCmd.Next()
	if data == nil {
		_ = fetchCmd.Close()
		return nil, fmt.Errorf("message %d not found", uid)
	}

	result := &Message{}
	var rawBody []byte

	for {
		item := data.Next()
		if item == nil {
			break
		}
		switch d := item.(type) {
		case imapclient.FetchItemDataUID:
			result.UID = uint32(d.UID)
		case imapclient.FetchItemDataFlags:
			result.Unread = !hasSeenFlag(d.Flags)
		case imapclient.FetchItemDataEnvelope:
			if d.Envelope != nil {
				result.Date = d.Envelope.Date
				result.Subject = d.Envelope.Subject
				if len(d.Envelope.From) > 0 {
					result.From = formatAddress(d.Envelope.From[0])
				}
				for _, addr := range d.Envelope.To {
					result.To = append(result.To, formatAddress(addr))
				}
			}
		case imapclient.FetchItemDataBodySection:
			// The literal streams off the connection; it must be
			// consumed before the next msg.Next() call.
			if d.Literal == nil {
				continue
			}
			var readErr error
			rawBody, readErr = io.ReadAll(io.LimitReader(d.Literal, maxRawMessageSize))
			_, _ = io.Copy(io.Discard, d.Literal)
			if readErr != nil {
				c.logger.Debug("reading body literal", "uid", uid, "error", readErr)
				rawBody = nil
			}
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch message %d: %w", uid, err)
	}

	if rawBody != nil {
		if err := c.extractBody(result, bytes.NewReader(rawBody)); err != nil {
			c.logger.Debug("body parse failed", "uid", uid, "error", err)
		}
	}
	return result, nil
}

// extractBody walks the MIME parts preferring text/plain, falling back
// to text/html converted via HTMLToText.
//
// go-message can hand back a usable reader together with an
// unknown-charset error; those are treated as warnings since slightly
// garbled text still beats no text.
func (c *Client) extractBody(msg *Message, r io.Reader) error {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return fmt.Errorf("create mail reader: %w", err)
	}
	if mr == nil {
		return fmt.Errorf("create mail reader: %w", err)
	}

	var htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return fmt.Errorf("next part: %w", err)
		}
		if part == nil {
			continue
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue // attachments are out of scope
		}
		contentType, _, _ := inline.ContentType()

		switch {
		case contentType == "text/plain" && msg.Body == "":
			msg.Body = readPartText(part.Body)
		case contentType == "text/html" && htmlBody == "":
			htmlBody = readPartText(part.Body)
		}
	}

	if msg.Body == "" && htmlBody != "" {
		msg.Body = HTMLToText(htmlBody)
	}
	return nil
}

func readPartText(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxBodySize+1))
	if err != nil {
		return ""
	}
	text := string(body)
	if len(body) > maxBodySize {
		text = text[:maxBodySize] + "\n\n[mensaje truncado]"
	}
	return strings.TrimSpace(text)
}
