package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adavila/ada/internal/tools"
)

// RegisterTools adds the mail tools to the registry.
func RegisterTools(r *tools.Registry, client *Client) {
	r.MustRegister(&tools.Tool{
		Name:        "search_email",
		Description: "Search the user's inbox. Returns a list of recent matching messages with their numeric id, date, sender and subject. Use read_email with the id to get the full text.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Free text to match against message content",
				},
				"from": map[string]any{
					"type":        "string",
					"description": "Sender address or name fragment",
				},
				"since": map[string]any{
					"type":        "string",
					"description": "Only messages on or after this date, YYYY-MM-DD",
				},
				"unread_only": map[string]any{
					"type":        "boolean",
					"description": "Restrict to unread messages",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum results, default 10",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			opts := SearchOptions{
				Query:  tools.StringArg(args, "query"),
				From:   tools.StringArg(args, "from"),
				Unread: tools.BoolArg(args, "unread_only", false),
				Limit:  tools.IntArg(args, "limit", 10),
			}
			if since := tools.StringArg(args, "since"); since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return "", fmt.Errorf("invalid since date %q, want YYYY-MM-DD", since)
				}
				opts.Since = t
			}

			summaries, err := client.Search(ctx, opts)
			if err != nil {
				return "", fmt.Errorf("search mail: %w", err)
			}
			if len(summaries) == 0 {
				return "No messages match.", nil
			}
			return FormatSummaries(summaries), nil
		},
	})

	r.MustRegister(&tools.Tool{
		Name:        "read_email",
		Description: "Read the full text of one message by the id returned from search_email.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{
					"type":        "integer",
					"description": "Message id from search_email",
				},
			},
			"required": []string{"id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			uid := tools.IntArg(args, "id", 0)
			if uid <= 0 {
				return "", fmt.Errorf("invalid message id %d", uid)
			}

			msg, err := client.Read(ctx, uint32(uid))
			if err != nil {
				return "", fmt.Errorf("read message: %w", err)
			}

			var sb strings.Builder
			fmt.Fprintf(&sb, "From: %s\n", msg.From)
			fmt.Fprintf(&sb, "To: %s\n", strings.Join(msg.To, ", "))
			fmt.Fprintf(&sb, "Date: %s\n", msg.Date.Format("2006-01-02 15:04"))
			fmt.Fprintf(&sb, "Subject: %s\n\n", msg.Subject)
			if msg.Body == "" {
				sb.WriteString("(no readable body)")
			} else {
				sb.WriteString(msg.Body)
			}
			return sb.String(), nil
		},
	})

	r.MustRegister(&tools.Tool{
		Name:        "send_email",
		Description: "Send an email from the user's account. The body is markdown and is delivered as both plain text and HTML. Confirm recipients and content with the user before sending.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to": map[string]any{
					"type":        "string",
					"description": "Recipient addresses, comma separated",
				},
				"subject": map[string]any{
					"type": "string",
				},
				"body": map[string]any{
					"type":        "string",
					"description": "Message body in markdown",
				},
			},
			"required": []string{"to", "subject", "body"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			var to []string
			for _, addr := range strings.Split(tools.StringArg(args, "to"), ",") {
				if addr = strings.TrimSpace(addr); addr != "" {
					to = append(to, addr)
				}
			}
			if len(to) == 0 {
				return "", fmt.Errorf("no recipients")
			}

			msg, err := Compose(ComposeOptions{
				From:    client.cfg.From,
				To:      to,
				Subject: tools.StringArg(args, "subject"),
				Body:    tools.StringArg(args, "body"),
			})
			if err != nil {
				return "", fmt.Errorf("compose: %w", err)
			}
			if err := client.Send(ctx, to, msg); err != nil {
				return "", fmt.Errorf("send: %w", err)
			}
			return fmt.Sprintf("Email sent to %s.", strings.Join(to, ", ")), nil
		},
	})
}

// FormatSummaries renders search results one message per line.
func FormatSummaries(summaries []Summary) string {
	var sb strings.Builder
	for _, s := range summaries {
		marker := ""
		if s.Unread {
			marker = " [unread]"
		}
		fmt.Fprintf(&sb, "#%d %s | %s | %s%s\n",
			s.UID, s.Date.Format("2006-01-02 15:04"), s.From, s.Subject, marker)
	}
	return sb.String()
}
