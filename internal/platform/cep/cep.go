// Package cep proxies Brazilian postal code lookups to a ViaCEP-shaped
// service and normalizes the response for address autofill on patient
// registration.
package cep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

var (
	ErrInvalidCode = errors.New("invalid postal code")
	ErrNotFound    = errors.New("postal code not found")
)

var codePattern = regexp.MustCompile(`^\d{8}$`)

// Address is the normalized lookup result.
type Address struct {
	ZipCode      string `json:"zip_code"`
	Street       string `json:"street"`
	City         string `json:"city"`
	State        string `json:"state"`
	Neighborhood string `json:"neighborhood"`
}

// viaCEPResponse is the upstream wire shape.
type viaCEPResponse struct {
	CEP        string `json:"cep"`
	Logradouro string `json:"logradouro"`
	Bairro     string `json:"bairro"`
	Localidade string `json:"localidade"`
	UF         string `json:"uf"`
	Erro       bool   `json:"erro"`
}

// Normalize strips formatting from a postal code, keeping digits only.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Client looks up postal codes against the configured base URL.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a lookup client. baseURL points at a ViaCEP-compatible
// service.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Lookup resolves a postal code to an address. The code may be formatted
// ("01310-100") or bare digits.
func (c *Client) Lookup(ctx context.Context, code string) (*Address, error) {
	digits := Normalize(code)
	if !codePattern.MatchString(digits) {
		return nil, ErrInvalidCode
	}

	url := fmt.Sprintf("%s/ws/%s/json/", c.baseURL, digits)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cep lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return nil, ErrInvalidCode
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cep service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read cep response: %w", err)
	}

	var upstream viaCEPResponse
	if err := json.Unmarshal(body, &upstream); err != nil {
		return nil, fmt.Errorf("decode cep response: %w", err)
	}
	if upstream.Erro {
		return nil, ErrNotFound
	}

	return &Address{
		ZipCode:      Normalize(upstream.CEP),
		Street:       upstream.Logradouro,
		City:         upstream.Localidade,
		State:        upstream.UF,
		Neighborhood: upstream.Bairro,
	}, nil
}

// Handler returns the echo handler for GET /api/v1/cep/:code.
func Handler(client *Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		addr, err := client.Lookup(c.Request().Context(), c.Param("code"))
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidCode):
				return echo.NewHTTPError(http.StatusBadRequest, "invalid postal code")
			case errors.Is(err, ErrNotFound):
				return echo.NewHTTPError(http.StatusNotFound, "postal code not found")
			default:
				return err
			}
		}
		return c.JSON(http.StatusOK, addr)
	}
}
