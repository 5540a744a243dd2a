package calendar

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emersion/go-ical"
)

const (
	caldavRootStatus = `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:">
 <d:response>
  <d:href>/</d:href>
  <d:propstat>
   <d:prop><d:current-user-principal><d:href>/principals/ada/</d:href></d:current-user-principal></d:prop>
   <d:status>HTTP/1.1 200 OK</d:status>
  </d:propstat>
 </d:response>
</d:multistatus>`

	caldavPrincipalStatus = `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
 <d:response>
  <d:href>/principals/ada/</d:href>
  <d:propstat>
   <d:prop><c:calendar-home-set><d:href>/calendars/ada/</d:href></c:calendar-home-set></d:prop>
   <d:status>HTTP/1.1 200 OK</d:status>
  </d:propstat>
 </d:response>
</d:multistatus>`

	caldavHomeStatus = `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
 <d:response>
  <d:href>/calendars/ada/</d:href>
  <d:propstat>
   <d:prop><d:resourcetype><d:collection/></d:resourcetype></d:prop>
   <d:status>HTTP/1.1 200 OK</d:status>
  </d:propstat>
 </d:response>
 <d:response>
  <d:href>/calendars/ada/personal/</d:href>
  <d:propstat>
   <d:prop>
    <d:resourcetype><d:collection/><c:calendar/></d:resourcetype>
    <d:displayname>Personal</d:displayname>
   </d:prop>
   <d:status>HTTP/1.1 200 OK</d:status>
  </d:propstat>
 </d:response>
</d:multistatus>`
)

// Tool handlers for distinct conversations run in parallel, so the
// first calls to discover can race. The cache must fill exactly once
// and every caller must see the same paths.
func TestDiscoverConcurrent(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(http.StatusMultiStatus)
		switch r.URL.Path {
		case "/":
			io.WriteString(w, caldavRootStatus)
		case "/principals/ada/":
			io.WriteString(w, caldavPrincipalStatus)
		case "/calendars/ada/":
			io.WriteString(w, caldavHomeStatus)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL, Username: "ada", Password: "secret"}, time.UTC, nil)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	paths := make([][]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = client.discover(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("discover() worker %d error: %v", i, errs[i])
		}
		if len(paths[i]) != 1 || paths[i][0] != "/calendars/ada/personal/" {
			t.Errorf("discover() worker %d paths = %v", i, paths[i])
		}
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("server requests = %d, want 3 (discovery runs once)", got)
	}
}

func TestParseWhen(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{
			name: "rfc3339 with offset",
			in:   "2025-03-15T09:00:00+01:00",
			want: time.Date(2025, 3, 15, 9, 0, 0, 0, time.FixedZone("", 3600)),
		},
		{
			name: "no offset",
			in:   "2025-03-15T09:00:00",
			want: time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "bare date",
			in:   "2025-03-15",
			want: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{name: "garbage", in: "mañana", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseWhen(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("parseWhen(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if !tc.wantErr && !got.Equal(tc.want) {
				t.Errorf("parseWhen(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestFormatEvents(t *testing.T) {
	events := []Event{
		{
			Summary:  "Dentista",
			Location: "Calle Mayor 3",
			Start:    time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
			End:      time.Date(2025, 3, 15, 11, 0, 0, 0, time.UTC),
		},
		{
			Summary: "Cumpleaños Lucía",
			Start:   time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC),
			End:     time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC),
			AllDay:  true,
		},
	}

	got := FormatEvents(events)
	if !strings.Contains(got, "Sat 15 Mar 10:00-11:00: Dentista (Calle Mayor 3)") {
		t.Errorf("timed event misformatted:\n%s", got)
	}
	if !strings.Contains(got, "Sun 16 Mar (all day): Cumpleaños Lucía") {
		t.Errorf("all-day event misformatted:\n%s", got)
	}
}

func TestBuildEventCalendar(t *testing.T) {
	ev := Event{
		Summary:  "Dentista",
		Location: "Calle Mayor 3",
		Start:    time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 3, 15, 11, 0, 0, 0, time.UTC),
	}

	cal := buildEventCalendar("uid-1", ev)

	if v, _ := cal.Props.Text(ical.PropVersion); v != "2.0" {
		t.Errorf("VERSION = %q, want 2.0", v)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}

	got := events[0]
	if s, _ := got.Props.Text(ical.PropSummary); s != "Dentista" {
		t.Errorf("SUMMARY = %q", s)
	}
	if u, _ := got.Props.Text(ical.PropUID); u != "uid-1" {
		t.Errorf("UID = %q", u)
	}
	start, err := got.DateTimeStart(time.UTC)
	if err != nil {
		t.Fatalf("DateTimeStart: %v", err)
	}
	if !start.Equal(ev.Start) {
		t.Errorf("DTSTART = %v, want %v", start, ev.Start)
	}
	if l, _ := got.Props.Text(ical.PropLocation); l != "Calle Mayor 3" {
		t.Errorf("LOCATION = %q", l)
	}
}
