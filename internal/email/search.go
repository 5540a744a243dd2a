package email

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// SearchOptions narrows an inbox search. Zero values mean "no filter".
type SearchOptions struct {
	Query  string    // free text matched against message content
	From   string    // sender address or name fragment
	Since  time.Time // messages on or after this date
	Unread bool      // restrict to messages without \Seen
	Limit  int       // default 10
}

// Search returns the most recent INBOX messages matching the options,
// newest first.
func (c *Client) Search(ctx context.Context, opts SearchOptions) ([]Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	if err := c.selectInbox(); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	criteria := &imap.SearchCriteria{}
	if opts.Query != "" {
		criteria.Text = append(criteria.Text, opts.Query)
	}
	if opts.From != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key:   "From",
			Value: opts.From,
		})
	}
	if !opts.Since.IsZero() {
		criteria.Since = opts.Since
	}
	if opts.Unread {
		criteria.NotFlag = append(criteria.NotFlag, imap.FlagSeen)
	}

	searchData, err := c.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search INBOX: %w", err)
	}

	allUIDs := searchData.AllUIDs()
	if len(allUIDs) == 0 {
		return nil, nil
	}

	// Highest UIDs are the newest; keep the tail.
	if len(allUIDs) > limit {
		allUIDs = allUIDs[len(allUIDs)-limit:]
	}

	uidSet := imap.UIDSet{}
	for _, uid := range allUIDs {
		uidSet.AddNum(uid)
	}

	return c.fetchSummaries(uidSet)
}

// fetchSummaries fetches envelope data for the given UIDs, newest
// first. Caller must hold c.mu with INBOX selected.
func (c *Client) fetchSummaries(uidSet imap.UIDSet) ([]Summary, error) {
	fetchCmd := c.client.Fetch(uidSet, &imap.FetchOptions{
		UID:      true,
		Envelope: true,
		Flags:    true,
	})

	var summaries []Summary
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		var s Summary
		seen := false
		for {
			item := msg.Next()
			if item == nil {
				break
			}
			switch data := item.(type) {
			case imapclient.FetchItemDataUID:
				s.UID = uint32(data.UID)
			case imapclient.FetchItemDataFlags:
				seen = hasSeenFlag(data.Flags)
			case imapclient.FetchItemDataEnvelope:
				if data.Envelope != nil {
					s.Date = data.Envelope.Date
					s.Subject = data.Envelope.Subject
					if len(data.Envelope.From) > 0 {
						s.From = formatAddress(data.Envelope.From[0])
					}
				}
			case imapclient.FetchItemDataBodySection:
				drainLiteral(data.Literal)
			}
		}
		s.Unread = !seen

		if s.UID == 0 {
			c.logger.Debug("skipping message without UID")
			continue
		}
		summaries = append(summaries, s)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch summaries: %w", err)
	}

	for i, j := 0, len(summaries)-1; i < j; i, j = i+1, j-1 {
		summaries[i], summaries[j] = summaries[j], summaries[i]
	}
	return summaries, nil
}
