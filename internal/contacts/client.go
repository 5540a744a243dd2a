// Package contacts looks people up in the user's address books over
// CardDAV.
package contacts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/emersion/go-vcard"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/carddav"
)

// Config points at a CardDAV server.
type Config struct {
	URL      string
	Username string
	Password string
}

// Contact is the subset of a vCard the assistant reports on.
type Contact struct {
	Name     string
	Emails   []string
	Phones   []string
	Birthday string
}

// Client wraps a CardDAV client with address book discovery.
type Client struct {
	dav    *carddav.Client
	logger *slog.Logger

	mu        sync.Mutex
	bookPaths []string // guarded by mu
}

// NewClient creates a CardDAV client with basic auth.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := webdav.HTTPClientWithBasicAuth(nil, cfg.Username, cfg.Password)
	dav, err := carddav.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("carddav client for %s: %w", cfg.URL, err)
	}
	return &Client{dav: dav, logger: logger}, nil
}

// discover walks principal -> home set -> address books once and
// caches the collection paths. Concurrent searches from distinct
// conversations serialize on the lock rather than racing the cache.
func (c *Client) discover(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bookPaths != nil {
		return c.bookPaths, nil
	}

	principal, err := c.dav.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := c.dav.FindAddressBookHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find address book home set: %w", err)
	}
	books, err := c.dav.FindAddressBooks(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find address books: %w", err)
	}

	paths := make([]string, 0, len(books))
	for _, b := range books {
		paths = append(paths, b.Path)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no address books found under %s", homeSet)
	}

	c.bookPaths = paths
	return paths, nil
}

// Search returns contacts whose formatted name contains the query,
// case-insensitively, across all address books, sorted by name.
func (c *Client) Search(ctx context.Context, query string) ([]Contact, error) {
	paths, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}

	q := &carddav.AddressBookQuery{
		DataRequest: carddav.AddressDataRequest{
			Props: []string{
				vcard.FieldFormattedName,
				vcard.FieldEmail,
				vcard.FieldTelephone,
				vcard.FieldBirthday,
			},
		},
		PropFilters: []carddav.PropFilter{{
			Name: vcard.FieldFormattedName,
			TextMatches: []carddav.TextMatch{{
				Text:      query,
				MatchType: carddav.MatchContains,
			}},
		}},
	}

	var contacts []Contact
	for _, path := range paths {
		objects, err := c.dav.QueryAddressBook(ctx, path, q)
		if err != nil {
			return nil, fmt.Errorf("query address book %s: %w", path, err)
		}
		for _, obj := range objects {
			contacts = append(contacts, fromCard(obj.Card))
		}
	}

	sort.Slice(contacts, func(i, j int) bool {
		return strings.ToLower(contacts[i].Name) < strings.ToLower(contacts[j].Name)
	})
	return contacts, nil
}

func fromCard(card vcard.Card) Contact {
	return Contact{
		Name:     card.PreferredValue(vcard.FieldFormattedName),
		Emails:   card.Values(vcard.FieldEmail),
		Phones:   card.Values(vcard.FieldTelephone),
		Birthday: card.Value(vcard.FieldBirthday),
	}
}
