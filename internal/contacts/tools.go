package contacts

import (
	"context"
	"fmt"
	"strings"

	"github.com/adavila/ada/internal/tools"
)

// RegisterTools adds the contact lookup tool to the registry.
func RegisterTools(r *tools.Registry, client *Client) {
	r.MustRegister(&tools.Tool{
		Name:        "search_contacts",
		Description: "Find people in the user's address book by name. Returns name, email addresses, phone numbers and birthday when available. Use this to resolve 'Marta' into an email address before sending mail.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Name or name fragment to search for",
				},
			},
			"required": []string{"name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name := tools.StringArg(args, "name")

			matches, err := client.Search(ctx, name)
			if err != nil {
				return "", fmt.Errorf("search contacts: %w", err)
			}
			if len(matches) == 0 {
				return fmt.Sprintf("No contacts matching '%s'.", name), nil
			}
			return FormatContacts(matches), nil
		},
	})
}

// FormatContacts renders contacts one per line.
func FormatContacts(contacts []Contact) string {
	var sb strings.Builder
	for _, c := range contacts {
		sb.WriteString(c.Name)
		if len(c.Emails) > 0 {
			fmt.Fprintf(&sb, " | email: %s", strings.Join(c.Emails, ", "))
		}
		if len(c.Phones) > 0 {
			fmt.Fprintf(&sb, " | tel: %s", strings.Join(c.Phones, ", "))
		}
		if c.Birthday != "" {
			fmt.Fprintf(&sb, " | birthday: %s", c.Birthday)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
