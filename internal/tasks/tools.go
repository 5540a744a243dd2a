package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adavila/ada/internal/tools"
)

// RegisterTools adds the task tools to the registry.
func RegisterTools(r *tools.Registry, store *Store) {
	r.MustRegister(&tools.Tool{
		Name:        "create_task",
		Description: "Add an item to the user's to-do list, for requests like 'remind me to buy milk'. The due date is optional.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Short description of the task",
				},
				"due": map[string]any{
					"type":        "string",
					"description": "Optional due instant, ISO-8601",
				},
			},
			"required": []string{"title"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			var due *time.Time
			if raw := tools.StringArg(args, "due"); raw != "" {
				t, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					return "", fmt.Errorf("invalid due %q, want ISO-8601", raw)
				}
				due = &t
			}

			task, err := store.Create(tools.StringArg(args, "title"), due)
			if err != nil {
				return "", fmt.Errorf("create task: %w", err)
			}
			if task.Due != nil {
				return fmt.Sprintf("Task added: %s (due %s).", task.Title, task.Due.Format("2006-01-02 15:04")), nil
			}
			return fmt.Sprintf("Task added: %s.", task.Title), nil
		},
	})

	r.MustRegister(&tools.Tool{
		Name:        "list_tasks",
		Description: "List the user's open tasks, soonest due first.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			pending, err := store.Pending()
			if err != nil {
				return "", fmt.Errorf("list tasks: %w", err)
			}
			if len(pending) == 0 {
				return "No open tasks.", nil
			}
			return FormatTasks(pending), nil
		},
	})

	r.MustRegister(&tools.Tool{
		Name:        "complete_task",
		Description: "Mark one open task as done, matched by a fragment of its title. Fails if the fragment matches zero or several tasks.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Fragment of the task title to complete",
				},
			},
			"required": []string{"title"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			task, err := store.Complete(tools.StringArg(args, "title"))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Done: %s.", task.Title), nil
		},
	})
}

// FormatTasks renders tasks one per line.
func FormatTasks(list []*Task) string {
	var sb strings.Builder
	for _, t := range list {
		sb.WriteString("- ")
		sb.WriteString(t.Title)
		if t.Due != nil {
			fmt.Fprintf(&sb, " (due %s)", t.Due.Format("2006-01-02 15:04"))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
