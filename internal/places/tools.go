package places

import (
	"context"
	"fmt"
	"strings"

	"github.com/adavila/ada/internal/tools"
)

// RegisterTools adds the place search tool to the registry.
func RegisterTools(r *tools.Registry, client *Client) {
	r.MustRegister(&tools.Tool{
		Name:        "find_places",
		Description: "Look up points of interest or addresses, for questions like 'is there a pharmacy near Malasaña'. Returns names and addresses.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to look for (pharmacy, restaurant, street address...)",
				},
				"near": map[string]any{
					"type":        "string",
					"description": "Neighbourhood, city or landmark to search around",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum results, default 5",
				},
			},
			"required": []string{"query"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			results, err := client.Search(ctx,
				tools.StringArg(args, "query"),
				tools.StringArg(args, "near"),
				tools.IntArg(args, "limit", 5),
			)
			if err != nil {
				return "", fmt.Errorf("find places: %w", err)
			}
			if len(results) == 0 {
				return "No places found.", nil
			}
			return FormatPlaces(results), nil
		},
	})
}

// FormatPlaces renders results one per line.
func FormatPlaces(places []Place) string {
	var sb strings.Builder
	for _, p := range places {
		name := p.Name
		if name == "" {
			name = p.DisplayName
		}
		sb.WriteString(name)
		if p.Category != "" {
			fmt.Fprintf(&sb, " [%s]", p.Category)
		}
		if p.Name != "" && p.DisplayName != "" {
			fmt.Fprintf(&sb, " | %s", p.DisplayName)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
