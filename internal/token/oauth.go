package token

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const assertionLifetime = 2 * time.Minute

// OAuthConfig holds the signing credentials for the direct token exchange.
type OAuthConfig struct {
	TokenURL     string
	ClientKey    string
	MemberID     string
	SigningKeyID string
	Audience     string
}

// OAuthSupplier exchanges an RS256-signed JWT assertion for a bearer token
// against the upstream OAuth endpoint, without going through the deployed
// token function.
type OAuthSupplier struct {
	config     OAuthConfig
	privateKey *rsa.PrivateKey
	httpClient *http.Client
	now        func() time.Time
	log        *zap.Logger
}

// NewOAuthSupplier creates a supplier from a PEM-encoded RSA private key file.
func NewOAuthSupplier(config OAuthConfig, privateKeyPath string, log *zap.Logger) (*OAuthSupplier, error) {
	pemBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &OAuthSupplier{
		config:     config,
		privateKey: privateKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
		log:        log,
	}, nil
}

// Token signs a short-lived assertion and posts it to the token endpoint.
func (s *OAuthSupplier) Token(ctx context.Context) (string, error) {
	assertion, err := s.signAssertion()
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var payload struct {
		AccessToken      string `json:"access_token"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	if payload.Error != "" {
		return "", fmt.Errorf("%w: %s: %s", ErrTokenExchange, payload.Error, payload.ErrorDescription)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: access token missing from response (status %d)", ErrTokenExchange, resp.StatusCode)
	}

	s.log.Debug("obtained bearer token from oauth endpoint")

	return payload.AccessToken, nil
}

func (s *OAuthSupplier) signAssertion() (string, error) {
	now := s.now()

	claims := jwt.RegisteredClaims{
		Issuer:    s.config.ClientKey,
		Subject:   s.config.MemberID,
		Audience:  jwt.ClaimStrings{s.config.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.config.SigningKeyID

	return token.SignedString(s.privateKey)
}
