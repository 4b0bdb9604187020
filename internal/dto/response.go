package dto

import "time"

// EventsResponse is the read API's success payload.
type EventsResponse struct {
	Success  bool            `json:"success"`
	PageInfo PageInfo        `json:"pageInfo"`
	Events   []EventResponse `json:"events"`
}

// PageInfo carries the opaque continuation cursor, absent on the last page.
type PageInfo struct {
	NextCursor string `json:"nextCursor,omitempty"`
}

// ErrorResponse is the read API's failure payload.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// EventResponse is one event as exposed by the read API.
type EventResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	EventURL    string          `json:"eventUrl"`
	Description string          `json:"description"`
	DateTime    time.Time       `json:"dateTime"`
	Duration    string          `json:"duration"`
	Venue       VenueResponse   `json:"venue"`
	Group       GroupResponse   `json:"group"`
	Host        HostResponse    `json:"host"`
	Images      []ImageResponse `json:"images"`
}

type VenueResponse struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
}

type GroupResponse struct {
	Name    string `json:"name"`
	URLName string `json:"urlname"`
}

type HostResponse struct {
	Name string `json:"name"`
}

type ImageResponse struct {
	BaseURL string `json:"baseUrl"`
	Preview string `json:"preview"`
}
