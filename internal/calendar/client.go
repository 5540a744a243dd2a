// Package calendar reads and writes the user's calendars over CalDAV.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
)

// Config points at a CalDAV server (Nextcloud, Radicale, Fastmail...).
type Config struct {
	URL      string
	Username string
	Password string
}

// Event is one calendar entry flattened from its VEVENT.
type Event struct {
	UID      string
	Summary  string
	Location string
	Start    time.Time
	End      time.Time
	AllDay   bool
}

// Client wraps a CalDAV client with calendar discovery.
type Client struct {
	dav    *caldav.Client
	loc    *time.Location
	logger *slog.Logger

	mu            sync.Mutex
	calendarPaths []string // guarded by mu; discovered lazily, cached for the process lifetime
}

// NewClient creates a CalDAV client with basic auth.
func NewClient(cfg Config, loc *time.Location, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}

	httpClient := webdav.HTTPClientWithBasicAuth(nil, cfg.Username, cfg.Password)
	dav, err := caldav.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("caldav client for %s: %w", cfg.URL, err)
	}
	return &Client{dav: dav, loc: loc, logger: logger}, nil
}

// discover walks principal -> home set -> calendars once and caches
// the calendar collection paths. Tool calls for distinct conversations
// run concurrently, so the cache is filled under the lock and a second
// caller waits for the first discovery instead of racing it.
func (c *Client) discover(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.calendarPaths != nil {
		return c.calendarPaths, nil
	}

	principal, err := c.dav.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := c.dav.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find calendar home set: %w", err)
	}
	calendars, err := c.dav.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	paths := make([]string, 0, len(calendars))
	for _, cal := range calendars {
		paths = append(paths, cal.Path)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no calendars found under %s", homeSet)
	}

	c.logger.Debug("calendars discovered", "count", len(paths))
	c.calendarPaths = paths
	return paths, nil
}

// ListEvents returns events overlapping [start, end) across all of the
// user's calendars, sorted by start time.
func (c *Client) ListEvents(ctx context.Context, start, end time.Time) ([]Event, error) {
	paths, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name:     ical.CompEvent,
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start,
				End:   end,
			}},
		},
	}

	var events []Event
	for _, path := range paths {
		objects, err := c.dav.QueryCalendar(ctx, path, query)
		if err != nil {
			return nil, fmt.Errorf("query calendar %s: %w", path, err)
		}
		for _, obj := range objects {
			for _, ev := range obj.Data.Events() {
				parsed, err := c.parseEvent(ev)
				if err != nil {
					c.logger.Debug("skipping unparseable event", "path", obj.Path, "error", err)
					continue
				}
				events = append(events, parsed)
			}
		}
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}

func (c *Client) parseEvent(ev ical.Event) (Event, error) {
	start, err := ev.DateTimeStart(c.loc)
	if err != nil {
		return Event{}, fmt.Errorf("event start: %w", err)
	}
	end, err := ev.DateTimeEnd(c.loc)
	if err != nil {
		return Event{}, fmt.Errorf("event end: %w", err)
	}

	summary, _ := ev.Props.Text(ical.PropSummary)
	location, _ := ev.Props.Text(ical.PropLocation)
	uid, _ := ev.Props.Text(ical.PropUID)

	allDay := false
	if p := ev.Props.Get(ical.PropDateTimeStart); p != nil {
		allDay = p.ValueType() == ical.ValueDate
	}

	return Event{
		UID:      uid,
		Summary:  summary,
		Location: location,
		Start:    start,
		End:      end,
		AllDay:   allDay,
	}, nil
}

// CreateEvent adds an event to the user's first calendar and returns
// its UID.
func (c *Client) CreateEvent(ctx context.Context, ev Event) (string, error) {
	paths, err := c.discover(ctx)
	if err != nil {
		return "", err
	}

	uid := uuid.NewString()
	cal := buildEventCalendar(uid, ev)

	objPath := strings.TrimSuffix(paths[0], "/") + "/" + uid + ".ics"
	if _, err := c.dav.PutCalendarObject(ctx, objPath, cal); err != nil {
		return "", fmt.Errorf("put event: %w", err)
	}

	c.logger.Info("event created", "uid", uid, "summary", ev.Summary, "start", ev.Start)
	return uid, nil
}

// buildEventCalendar wraps a single VEVENT in a VCALENDAR envelope.
func buildEventCalendar(uid string, ev Event) *ical.Calendar {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	event.Props.SetText(ical.PropSummary, ev.Summary)
	event.Props.SetDateTime(ical.PropDateTimeStart, ev.Start)
	event.Props.SetDateTime(ical.PropDateTimeEnd, ev.End)
	if ev.Location != "" {
		event.Props.SetText(ical.PropLocation, ev.Location)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//ada//calendar//ES")
	cal.Children = append(cal.Children, event.Component)
	return cal
}
