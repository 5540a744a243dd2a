package facts

import (
	"context"
	"fmt"
	"strings"

	"github.com/adavila/ada/internal/tools"
)

// RegisterTools adds the fact tools for the given owner to the registry.
// The owner is fixed at startup; this is a single-tenant assistant.
func RegisterTools(r *tools.Registry, store *Store, owner string) {
	r.MustRegister(&tools.Tool{
		Name:        "remember_fact",
		Description: "Store a discrete, stable piece of information about the user for later recall: preferences, habits, people in their life, recurring plans. Each fact is a single self-contained piece of knowledge identified by a short key; saving the same key again replaces the value.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": map[string]any{
					"type":        "string",
					"description": "Short unique identifier for this fact (e.g., 'coffee_preference', 'sister_birthday')",
				},
				"value": map[string]any{
					"type":        "string",
					"description": "The information to remember",
				},
				"category": map[string]any{
					"type":        "string",
					"enum":        []string{"personal", "preference", "routine", "people", "other"},
					"description": "Category: personal (who the user is), preference (how they like things), routine (schedules, habits), people (friends, family), other",
				},
			},
			"required": []string{"key", "value"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			key := tools.StringArg(args, "key")
			value := tools.StringArg(args, "value")
			category := Category(tools.StringArg(args, "category"))

			fact, err := store.Set(owner, key, value, category)
			if err != nil {
				return "", fmt.Errorf("store fact: %w", err)
			}
			return fmt.Sprintf("Remembered: [%s] %s = %s", fact.Category, fact.Key, fact.Value), nil
		},
	})

	r.MustRegister(&tools.Tool{
		Name:        "recall_facts",
		Description: "Retrieve information from long-term memory. Look up a specific key, search by text, or list everything stored.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": map[string]any{
					"type":        "string",
					"description": "Specific key to recall",
				},
				"query": map[string]any{
					"type":        "string",
					"description": "Search term to find matching facts",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if key := tools.StringArg(args, "key"); key != "" {
				fact, err := store.Get(owner, key)
				if err != nil {
					return "Not found", nil
				}
				return fmt.Sprintf("[%s] %s = %s", fact.Category, fact.Key, fact.Value), nil
			}

			if query := tools.StringArg(args, "query"); query != "" {
				matches, err := store.Search(owner, query)
				if err != nil {
					return "", fmt.Errorf("search: %w", err)
				}
				if len(matches) == 0 {
					return fmt.Sprintf("No facts matching '%s'", query), nil
				}
				return formatFacts(matches), nil
			}

			all, err := store.GetAll(owner)
			if err != nil {
				return "", fmt.Errorf("list facts: %w", err)
			}
			if len(all) == 0 {
				return "Memory is empty.", nil
			}
			return formatFacts(all), nil
		},
	})

	r.MustRegister(&tools.Tool{
		Name:        "forget_fact",
		Description: "Remove a fact from long-term memory by its key.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": map[string]any{
					"type":        "string",
					"description": "Key of the fact to forget",
				},
			},
			"required": []string{"key"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			key := tools.StringArg(args, "key")
			if err := store.Delete(owner, key); err != nil {
				return "", err
			}
			return fmt.Sprintf("Forgot: %s", key), nil
		},
	})
}

func formatFacts(facts []*Fact) string {
	var sb strings.Builder
	for _, f := range facts {
		sb.WriteString(fmt.Sprintf("[%s] %s = %s\n", f.Category, f.Key, f.Value))
	}
	return sb.String()
}
