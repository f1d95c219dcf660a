package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Base URLs of the token exchange endpoints.
const (
	ProductionExchangeURL = "https://identitytoolkit.googleapis.com"
	emulatorExchangePath  = "/identitytoolkit.googleapis.com"
)

// EmulatorExchangeURL returns the exchange base URL served by the auth emulator.
func EmulatorExchangeURL(emulatorHost string) string {
	return "http://" + strings.TrimSuffix(emulatorHost, "/") + emulatorExchangePath
}

// RESTExchanger implements TokenExchanger against the provider's accounts REST API.
type RESTExchanger struct {
	baseURL string
	client  *http.Client
}

// NewRESTExchanger returns an exchanger for baseURL. A nil client gets a 10s timeout.
func NewRESTExchanger(baseURL string, client *http.Client) *RESTExchanger {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RESTExchanger{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

type exchangeResponse struct {
	IDToken string `json:"idToken"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ExchangeCustomToken trades a custom token for an ID token.
func (e *RESTExchanger) ExchangeCustomToken(ctx context.Context, apiKey, customToken string) (string, error) {
	return e.post(ctx, "accounts:signInWithCustomToken", apiKey, map[string]interface{}{
		"token":             customToken,
		"returnSecureToken": true,
	})
}

// SignInWithPassword trades email and password for an ID token.
func (e *RESTExchanger) SignInWithPassword(ctx context.Context, apiKey, email, password string) (string, error) {
	return e.post(ctx, "accounts:signInWithPassword", apiKey, map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
}

func (e *RESTExchanger) post(ctx context.Context, method, apiKey string, body map[string]interface{}) (string, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode %s request: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/v1/%s?key=%s", e.baseURL, method, url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var result exchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode %s response (status %d): %w", method, resp.StatusCode, err)
	}

	if result.Error != nil {
		return "", &ProviderError{Message: result.Error.Message}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", &ProviderError{Message: http.StatusText(resp.StatusCode)}
	}
	if result.IDToken == "" {
		return "", &ProviderError{Message: "no idToken in response"}
	}
	return result.IDToken, nil
}
