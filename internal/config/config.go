package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	Service  Service
	AWS      AWS
	Tables   Tables
	Meetup   Meetup
	Importer Importer
	API      API
}

type Service struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" default:"development"`
	APIPort     string `envconfig:"SERVICE_API_PORT" default:"8080"`
}

// AWS configures the shared SDK clients. Endpoint plus the static key pair
// switch the clients into local development mode (DynamoDB Local / SAM).
type AWS struct {
	Region          string `envconfig:"AWS_REGION" default:"us-east-2"`
	Endpoint        string `envconfig:"AWS_ENDPOINT"`
	AccessKey       string `envconfig:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY"`
}

type Tables struct {
	Events         string `envconfig:"EVENTS_TABLE_NAME" default:"Events"`
	ArchivedEvents string `envconfig:"ARCHIVED_EVENTS_TABLE_NAME" default:"ArchivedEvents"`
	RunLog         string `envconfig:"IMPORTER_LOG_TABLE_NAME" default:"ImporterLog"`
	GroupDateIndex string `envconfig:"EVENTS_GROUP_INDEX_NAME" default:"EventsByGroupIndex"`
}

// Meetup configures the upstream GraphQL API and how a bearer token for it
// is obtained. TokenSource selects between invoking the token Lambda and
// exchanging a signed JWT directly against the OAuth endpoint.
type Meetup struct {
	GraphQLURL    string `envconfig:"MEETUP_GRAPHQL_URL" default:"https://api.meetup.com/gql"`
	PageSize      int    `envconfig:"MEETUP_PAGE_SIZE" default:"10"`
	HorizonMonths int    `envconfig:"MEETUP_HORIZON_MONTHS" default:"6"`

	TokenSource       string `envconfig:"MEETUP_TOKEN_SOURCE" default:"lambda"`
	TokenFunctionName string `envconfig:"GET_MEETUP_TOKEN_FUNCTION_NAME"`

	TokenURL       string `envconfig:"MEETUP_TOKEN_URL" default:"https://secure.meetup.com/oauth2/access"`
	ClientKey      string `envconfig:"MEETUP_CLIENT_KEY"`
	MemberID       string `envconfig:"MEETUP_USER_ID"`
	SigningKeyID   string `envconfig:"MEETUP_SIGNING_KEY_ID"`
	PrivateKeyPath string `envconfig:"MEETUP_PRIVATE_KEY_PATH" default:"./meetup-private-key"`
	Audience       string `envconfig:"MEETUP_JWT_AUDIENCE" default:"api.meetup.com"`
}

type Importer struct {
	GroupNames []string `envconfig:"MEETUP_GROUP_NAMES"`
}

type API struct {
	Keys []string `envconfig:"API_KEYS"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
