// Package meetup is the client for the upstream GraphQL event search API.
package meetup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Open-SGF/sgf-meetup-api/internal/domain"
)

const futureEventsQuery = `
  query ($urlname: String!, $itemsNum: Int!, $cursor: String) {
    events: groupByUrlname(urlname: $urlname) {
      unifiedEvents(input: { first: $itemsNum, after: $cursor }) {
        count
        pageInfo {
          endCursor
          hasNextPage
        }
        edges {
          node {
            id
            title
            eventUrl
            description
            dateTime
            duration
            venue {
              name
              address
              city
              state
              postalCode
            }
            group {
              name
              urlname
            }
            host {
              name
            }
            images {
              baseUrl
              preview
            }
          }
        }
      }
    }
  }
`

// ClientConfig configures the upstream client. HorizonMonths bounds the
// pagination depth: once a fetched event is dated at or past now plus the
// horizon, no further pages are requested for that group.
type ClientConfig struct {
	GraphQLURL    string
	PageSize      int
	HorizonMonths int
}

// Client fetches upcoming events for a group, page by page, and assembles
// them into a single slice. It performs no writes.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	now        func() time.Time
	log        *zap.Logger
}

// NewClient creates a new upstream client.
func NewClient(config ClientConfig, log *zap.Logger) *Client {
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
		log:        log,
	}
}

// FetchGroupEvents returns every upcoming event for the group up to the
// look-ahead horizon. Any failure abandons the whole fetch: a partial page
// set must never be mistaken for the group's complete upstream view.
func (c *Client) FetchGroupEvents(ctx context.Context, groupURLName, token string) ([]domain.Event, error) {
	horizon := c.now().AddDate(0, c.config.HorizonMonths, 0)

	var events []domain.Event
	cursor := ""

	for {
		page, err := c.fetchPage(ctx, groupURLName, token, cursor)
		if err != nil {
			return nil, fmt.Errorf("fetch events for group %s: %w", groupURLName, err)
		}

		pastHorizon := false
		for _, edge := range page.Edges {
			event, err := edge.Node.toDomain()
			if err != nil {
				return nil, fmt.Errorf("fetch events for group %s: %w", groupURLName, err)
			}
			events = append(events, event)
			if !event.DateTime.Before(horizon) {
				pastHorizon = true
			}
		}

		if pastHorizon || !page.PageInfo.HasNextPage {
			break
		}
		// A next page without a cursor would refetch the first page forever.
		if page.PageInfo.EndCursor == "" {
			return nil, fmt.Errorf("fetch events for group %s: next page advertised without a cursor", groupURLName)
		}
		cursor = page.PageInfo.EndCursor
	}

	c.log.Debug("fetched upstream events",
		zap.String("group", groupURLName),
		zap.Int("count", len(events)))

	return events, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type futureEventsResponse struct {
	Data struct {
		Events *struct {
			UnifiedEvents unifiedEvents `json:"unifiedEvents"`
		} `json:"events"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type unifiedEvents struct {
	Count    int `json:"count"`
	PageInfo struct {
		EndCursor   string `json:"endCursor"`
		HasNextPage bool   `json:"hasNextPage"`
	} `json:"pageInfo"`
	Edges []struct {
		Node eventNode `json:"node"`
	} `json:"edges"`
}

type eventNode struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	EventURL    string `json:"eventUrl"`
	Description string `json:"description"`
	DateTime    string `json:"dateTime"`
	Duration    string `json:"duration"`
	Venue       *struct {
		Name       string `json:"name"`
		Address    string `json:"address"`
		City       string `json:"city"`
		State      string `json:"state"`
		PostalCode string `json:"postalCode"`
	} `json:"venue"`
	Group *struct {
		Name    string `json:"name"`
		URLName string `json:"urlname"`
	} `json:"group"`
	Host *struct {
		Name string `json:"name"`
	} `json:"host"`
	Images []struct {
		BaseURL string `json:"baseUrl"`
		Preview string `json:"preview"`
	} `json:"images"`
}

func (n eventNode) toDomain() (domain.Event, error) {
	dateTime, err := parseEventTime(n.DateTime)
	if err != nil {
		return domain.Event{}, fmt.Errorf("invalid dateTime for event %s: %w", n.ID, err)
	}

	// Normalized to UTC so an event compares equal after a storage round
	// trip regardless of the offset upstream reported it in.
	event := domain.Event{
		ID:          n.ID,
		Title:       n.Title,
		EventURL:    n.EventURL,
		Description: n.Description,
		DateTime:    dateTime.UTC(),
		Duration:    n.Duration,
	}

	if n.Venue != nil {
		event.Venue = domain.Venue{
			Name:       n.Venue.Name,
			Address:    n.Venue.Address,
			City:       n.Venue.City,
			State:      n.Venue.State,
			PostalCode: n.Venue.PostalCode,
		}
	}
	if n.Group != nil {
		event.Group = domain.Group{Name: n.Group.Name, URLName: n.Group.URLName}
	}
	if n.Host != nil {
		event.Host = domain.Host{Name: n.Host.Name}
	}
	for _, image := range n.Images {
		event.Images = append(event.Images, domain.Image{
			BaseURL: image.BaseURL,
			Preview: image.Preview,
		})
	}

	return event, nil
}

// parseEventTime accepts both full RFC 3339 and the offset-without-seconds
// variant the upstream API emits for some events.
func parseEventTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04-07:00", value)
}

func (c *Client) fetchPage(ctx context.Context, groupURLName, token, cursor string) (*unifiedEvents, error) {
	variables := map[string]any{
		"urlname":  groupURLName,
		"itemsNum": c.config.PageSize,
	}
	if cursor != "" {
		variables["cursor"] = cursor
	}

	body, err := json.Marshal(graphQLRequest{
		Query:     futureEventsQuery,
		Variables: variables,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.GraphQLURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	var response futureEventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(response.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", response.Errors[0].Message)
	}
	if response.Data.Events == nil {
		return nil, fmt.Errorf("no events payload for group %s", groupURLName)
	}

	return &response.Data.Events.UnifiedEvents, nil
}
