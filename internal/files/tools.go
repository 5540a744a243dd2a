package files

import (
	"context"
	"fmt"
	"strings"

	"github.com/adavila/ada/internal/tools"
)

// RegisterTools adds the file browsing tools to the registry.
func RegisterTools(r *tools.Registry, client *Client) {
	r.MustRegister(&tools.Tool{
		Name:        "list_files",
		Description: "List the contents of a folder in the user's cloud storage.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Folder path, default the root",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			dir := tools.StringArg(args, "path")
			entries, err := client.List(ctx, dir)
			if err != nil {
				return "", fmt.Errorf("list files: %w", err)
			}
			if len(entries) == 0 {
				return "Empty folder.", nil
			}
			return FormatEntries(entries), nil
		},
	})

	r.MustRegister(&tools.Tool{
		Name:        "search_files",
		Description: "Find files in the user's cloud storage by name fragment.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Fragment of the file name to look for",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "Folder to search under, default the root",
				},
			},
			"required": []string{"name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			entries, err := client.Search(ctx, tools.StringArg(args, "path"), tools.StringArg(args, "name"))
			if err != nil {
				return "", fmt.Errorf("search files: %w", err)
			}
			if len(entries) == 0 {
				return "No files match.", nil
			}
			return FormatEntries(entries), nil
		},
	})
}

// FormatEntries renders entries one per line.
func FormatEntries(entries []Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		if e.IsDir {
			fmt.Fprintf(&sb, "%s/\n", strings.TrimSuffix(e.Path, "/"))
		} else {
			fmt.Fprintf(&sb, "%s (%s)\n", e.Path, humanSize(e.Size))
		}
	}
	return sb.String()
}
