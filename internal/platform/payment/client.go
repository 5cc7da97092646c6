package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CheckoutParams describe a new checkout session for a clinic signup.
type CheckoutParams struct {
	PriceID       string
	Quantity      int
	CustomerEmail string
	CompanyName   string
	SuccessURL    string
	CancelURL     string
}

// CustomerParams are the mutable customer fields.
type CustomerParams struct {
	Name  string
	Email string
}

// Client is the processor operations the billing domain needs.
type Client interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	UpdateSubscriptionMetadata(ctx context.Context, id string, metadata map[string]string) (*Subscription, error)
	UpdateCustomer(ctx context.Context, id string, params CustomerParams) (*Customer, error)
	CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error)
}

// HTTPClient talks to the processor's REST API with form-encoded requests
// and bearer authentication.
type HTTPClient struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewHTTPClient creates a client against baseURL using secretKey.
func NewHTTPClient(baseURL, secretKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", strconv.Itoa(params.Quantity))
	form.Set("customer_email", params.CustomerEmail)
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("metadata[company_name]", params.CompanyName)
	form.Set("subscription_data[metadata][company_name]", params.CompanyName)
	form.Set("subscription_data[metadata][seats]", strconv.Itoa(params.Quantity))

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(id), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *HTTPClient) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	var sub Subscription
	if err := c.do(ctx, http.MethodGet, "/v1/subscriptions/"+url.PathEscape(id), nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *HTTPClient) UpdateSubscriptionMetadata(ctx context.Context, id string, metadata map[string]string) (*Subscription, error) {
	form := url.Values{}
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var sub Subscription
	if err := c.do(ctx, http.MethodPost, "/v1/subscriptions/"+url.PathEscape(id), form, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *HTTPClient) UpdateCustomer(ctx context.Context, id string, params CustomerParams) (*Customer, error) {
	form := url.Values{}
	if params.Name != "" {
		form.Set("name", params.Name)
	}
	if params.Email != "" {
		form.Set("email", params.Email)
	}

	var cust Customer
	if err := c.do(ctx, http.MethodPost, "/v1/customers/"+url.PathEscape(id), form, &cust); err != nil {
		return nil, err
	}
	return &cust, nil
}

func (c *HTTPClient) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("return_url", returnURL)

	var session PortalSession
	if err := c.do(ctx, http.MethodPost, "/v1/billing_portal/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// do performs a request and decodes the JSON response into out. Non-2xx
// responses are returned as *APIError.
func (c *HTTPClient) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wrapper struct {
			Error APIError `json:"error"`
		}
		if jsonErr := json.Unmarshal(respBody, &wrapper); jsonErr == nil {
			apiErr.Code = wrapper.Error.Code
			apiErr.Message = wrapper.Error.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
