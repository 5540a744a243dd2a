package contacts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/emersion/go-vcard"
)

const (
	carddavRootStatus = `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:">
 <d:response>
  <d:href>/</d:href>
  <d:propstat>
   <d:prop><d:current-user-principal><d:href>/principals/ada/</d:href></d:current-user-principal></d:prop>
   <d:status>HTTP/1.1 200 OK</d:status>
  </d:propstat>
 </d:response>
</d:multistatus>`

	carddavPrincipalStatus = `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:carddav">
 <d:response>
  <d:href>/principals/ada/</d:href>
  <d:propstat>
   <d:prop><c:addressbook-home-set><d:href>/addressbooks/ada/</d:href></c:addressbook-home-set></d:prop>
   <d:status>HTTP/1.1 200 OK</d:status>
  </d:propstat>
 </d:response>
</d:multistatus>`

	carddavHomeStatus = `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:carddav">
 <d:response>
  <d:href>/addressbooks/ada/</d:href>
  <d:propstat>
   <d:prop><d:resourcetype><d:collection/></d:resourcetype></d:prop>
   <d:status>HTTP/1.1 200 OK</d:status>
  </d:propstat>
 </d:response>
 <d:response>
  <d:href>/addressbooks/ada/personal/</d:href>
  <d:propstat>
   <d:prop>
    <d:resourcetype><d:collection/><c:addressbook/></d:resourcetype>
    <d:displayname>Personal</d:displayname>
   </d:prop>
   <d:status>HTTP/1.1 200 OK</d:status>
  </d:propstat>
 </d:response>
</d:multistatus>`
)

// Searches from distinct conversations run in parallel; the first
// calls to discover can race. The address book cache must fill exactly
// once with every caller seeing the same paths.
func TestDiscoverConcurrent(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(http.StatusMultiStatus)
		switch r.URL.Path {
		case "/":
			io.WriteString(w, carddavRootStatus)
		case "/principals/ada/":
			io.WriteString(w, carddavPrincipalStatus)
		case "/addressbooks/ada/":
			io.WriteString(w, carddavHomeStatus)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL, Username: "ada", Password: "secret"}, nil)
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
		if len(paths[i]) != 1 || paths[i][0] != "/addressbooks/ada/personal/" {
			t.Errorf("discover() worker %d paths = %v", i, paths[i])
		}
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("server requests = %d, want 3 (discovery runs once)", got)
	}
}

func makeCard(name string, emails, phones []string) vcard.Card {
	card := vcard.Card{}
	card.SetValue(vcard.FieldFormattedName, name)
	for _, e := range emails {
		card.Add(vcard.FieldEmail, &vcard.Field{Value: e})
	}
	for _, p := range phones {
		card.Add(vcard.FieldTelephone, &vcard.Field{Value: p})
	}
	return card
}

func TestFromCard(t *testing.T) {
	card := makeCard("Marta García", []string{"marta@example.com", "mg@work.example"}, []string{"+34 600 000 001"})
	card.SetValue(vcard.FieldBirthday, "1990-07-12")

	got := fromCard(card)
	if got.Name != "Marta García" {
		t.Errorf("Name = %q", got.Name)
	}
	if len(got.Emails) != 2 || got.Emails[0] != "marta@example.com" {
		t.Errorf("Emails = %v", got.Emails)
	}
	if len(got.Phones) != 1 || got.Phones[0] != "+34 600 000 001" {
		t.Errorf("Phones = %v", got.Phones)
	}
	if got.Birthday != "1990-07-12" {
		t.Errorf("Birthday = %q", got.Birthday)
	}
}

func TestFromCardSparse(t *testing.T) {
	got := fromCard(makeCard("Luis", nil, nil))
	if got.Name != "Luis" {
		t.Errorf("Name = %q", got.Name)
	}
	if len(got.Emails) != 0 || len(got.Phones) != 0 || got.Birthday != "" {
		t.Errorf("sparse card should have empty optional fields: %+v", got)
	}
}

func TestFormatContacts(t *testing.T) {
	got := FormatContacts([]Contact{
		{
			Name:     "Marta García",
			Emails:   []string{"marta@example.com"},
			Phones:   []string{"+34 600 000 001"},
			Birthday: "1990-07-12",
		},
		{Name: "Luis"},
	})

	if !strings.Contains(got, "Marta García | email: marta@example.com | tel: +34 600 000 001 | birthday: 1990-07-12") {
		t.Errorf("full contact misformatted:\n%s", got)
	}
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[1] != "Luis" {
		t.Errorf("sparse contact line = %q, want bare name", lines[1])
	}
}
