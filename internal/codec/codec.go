// Package codec maps between the in-memory event model and the flat
// attribute-value record layout of the events table. Both directions are
// pure; Decode(Encode(e)) returns e for every well-formed event.
package codec

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Open-SGF/sgf-meetup-api/internal/domain"
)

// record mirrors the persisted attribute layout. groupUrlName is duplicated
// at the top level because it is the partition key of the group/date index.
// deletedAt must be absent, not empty, for live events: the read path
// filters with attribute_not_exists.
type record struct {
	ID           string        `dynamodbav:"id"`
	Title        string        `dynamodbav:"title"`
	EventURL     string        `dynamodbav:"eventUrl"`
	Description  string        `dynamodbav:"description"`
	DateTime     string        `dynamodbav:"dateTime"`
	Duration     string        `dynamodbav:"duration"`
	Venue        venueRecord   `dynamodbav:"venue"`
	Group        groupRecord   `dynamodbav:"group"`
	Host         hostRecord    `dynamodbav:"host"`
	Images       []imageRecord `dynamodbav:"images,omitempty"`
	GroupURLName string        `dynamodbav:"groupUrlName"`
	DeletedAt    string        `dynamodbav:"deletedAt,omitempty"`
}

type venueRecord struct {
	Name       string `dynamodbav:"name"`
	Address    string `dynamodbav:"address"`
	City       string `dynamodbav:"city"`
	State      string `dynamodbav:"state"`
	PostalCode string `dynamodbav:"postalCode"`
}

type groupRecord struct {
	Name    string `dynamodbav:"name"`
	URLName string `dynamodbav:"urlname"`
}

type hostRecord struct {
	Name string `dynamodbav:"name"`
}

type imageRecord struct {
	BaseURL string `dynamodbav:"baseUrl"`
	Preview string `dynamodbav:"preview"`
}

// Encode converts an event into its stored attribute map.
func Encode(event domain.Event) (map[string]types.AttributeValue, error) {
	rec := record{
		ID:          event.ID,
		Title:       event.Title,
		EventURL:    event.EventURL,
		Description: event.Description,
		DateTime:    event.DateTime.UTC().Format(time.RFC3339),
		Duration:    event.Duration,
		Venue: venueRecord{
			Name:       event.Venue.Name,
			Address:    event.Venue.Address,
			City:       event.Venue.City,
			State:      event.Venue.State,
			PostalCode: event.Venue.PostalCode,
		},
		Group: groupRecord{
			Name:    event.Group.Name,
			URLName: event.Group.URLName,
		},
		Host:         hostRecord{Name: event.Host.Name},
		GroupURLName: event.Group.URLName,
	}

	for _, image := range event.Images {
		rec.Images = append(rec.Images, imageRecord{
			BaseURL: image.BaseURL,
			Preview: image.Preview,
		})
	}

	if event.DeletedAt != nil {
		rec.DeletedAt = event.DeletedAt.UTC().Format(time.RFC3339)
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}

	return item, nil
}

// Decode converts a stored attribute map back into an event. A missing
// deletedAt attribute decodes as not deleted.
func Decode(item map[string]types.AttributeValue) (domain.Event, error) {
	var rec record
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return domain.Event{}, fmt.Errorf("failed to unmarshal event record: %w", err)
	}

	dateTime, err := time.Parse(time.RFC3339, rec.DateTime)
	if err != nil {
		return domain.Event{}, fmt.Errorf("invalid dateTime for event %s: %w", rec.ID, err)
	}

	event := domain.Event{
		ID:          rec.ID,
		Title:       rec.Title,
		EventURL:    rec.EventURL,
		Description: rec.Description,
		DateTime:    dateTime,
		Duration:    rec.Duration,
		Venue: domain.Venue{
			Name:       rec.Venue.Name,
			Address:    rec.Venue.Address,
			City:       rec.Venue.City,
			State:      rec.Venue.State,
			PostalCode: rec.Venue.PostalCode,
		},
		Group: domain.Group{
			Name:    rec.Group.Name,
			URLName: rec.Group.URLName,
		},
		Host: domain.Host{Name: rec.Host.Name},
	}

	for _, image := range rec.Images {
		event.Images = append(event.Images, domain.Image{
			BaseURL: image.BaseURL,
			Preview: image.Preview,
		})
	}

	if rec.DeletedAt != "" {
		deletedAt, err := time.Parse(time.RFC3339, rec.DeletedAt)
		if err != nil {
			return domain.Event{}, fmt.Errorf("invalid deletedAt for event %s: %w", rec.ID, err)
		}
		event.DeletedAt = &deletedAt
	}

	return event, nil
}
