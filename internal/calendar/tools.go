package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adavila/ada/internal/tools"
)

// RegisterTools adds the calendar tools to the registry.
func RegisterTools(r *tools.Registry, client *Client) {
	r.MustRegister(&tools.Tool{
		Name:        "get_calendar_events",
		Description: "List the user's calendar events between two instants. Use this for questions like 'do I have anything tomorrow' by passing the day's boundaries.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"start": map[string]any{
					"type":        "string",
					"description": "Range start, ISO-8601 (e.g. 2025-03-15T00:00:00+01:00)",
				},
				"end": map[string]any{
					"type":        "string",
					"description": "Range end, ISO-8601, exclusive",
				},
			},
			"required": []string{"start", "end"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			start, err := parseWhen(tools.StringArg(args, "start"))
			if err != nil {
				return "", fmt.Errorf("invalid start: %w", err)
			}
			end, err := parseWhen(tools.StringArg(args, "end"))
			if err != nil {
				return "", fmt.Errorf("invalid end: %w", err)
			}

			events, err := client.ListEvents(ctx, start, end)
			if err != nil {
				return "", fmt.Errorf("list events: %w", err)
			}
			if len(events) == 0 {
				return "No events in that range.", nil
			}
			return FormatEvents(events), nil
		},
	})

	r.MustRegister(&tools.Tool{
		Name:        "create_calendar_event",
		Description: "Create an event in the user's calendar. Confirm title and time with the user before calling this.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type": "string",
				},
				"start": map[string]any{
					"type":        "string",
					"description": "Event start, ISO-8601",
				},
				"end": map[string]any{
					"type":        "string",
					"description": "Event end, ISO-8601; defaults to one hour after start",
				},
				"location": map[string]any{
					"type": "string",
				},
			},
			"required": []string{"title", "start"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			start, err := parseWhen(tools.StringArg(args, "start"))
			if err != nil {
				return "", fmt.Errorf("invalid start: %w", err)
			}
			end := start.Add(time.Hour)
			if raw := tools.StringArg(args, "end"); raw != "" {
				end, err = parseWhen(raw)
				if err != nil {
					return "", fmt.Errorf("invalid end: %w", err)
				}
			}
			if !end.After(start) {
				return "", fmt.Errorf("end %s is not after start %s", end, start)
			}

			ev := Event{
				Summary:  tools.StringArg(args, "title"),
				Location: tools.StringArg(args, "location"),
				Start:    start,
				End:      end,
			}
			if _, err := client.CreateEvent(ctx, ev); err != nil {
				return "", fmt.Errorf("create event: %w", err)
			}
			return fmt.Sprintf("Event created: %s, %s.", ev.Summary, start.Format("Mon 2 Jan 15:04")), nil
		},
	})
}

// parseWhen accepts full ISO-8601 timestamps and bare dates.
func parseWhen(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatEvents renders events one per line for the model.
func FormatEvents(events []Event) string {
	var sb strings.Builder
	for _, ev := range events {
		if ev.AllDay {
			fmt.Fprintf(&sb, "%s (all day): %s", ev.Start.Format("Mon 2 Jan"), ev.Summary)
		} else {
			fmt.Fprintf(&sb, "%s-%s: %s",
				ev.Start.Format("Mon 2 Jan 15:04"), ev.End.Format("15:04"), ev.Summary)
		}
		if ev.Location != "" {
			fmt.Fprintf(&sb, " (%s)", ev.Location)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
