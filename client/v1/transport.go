package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"axiapac.com/payroll/apperr"
)

type Response struct {
	StatusCode int
	Data       []byte
}

// envelope is the success and error body shape of the payroll server.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

// Transport handles low-level HTTP and authentication
type Transport struct {
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
}

// NewTransport creates a transport with base URL and auth
func NewTransport(baseURL, token string) *Transport {
	return &Transport{
		BaseURL:    baseURL,
		AuthToken:  token,
		HTTPClient: &http.Client{},
	}
}

// helper: build full URL with query params
func (t *Transport) buildURL(path string, query map[string]string) string {
	u, _ := url.Parse(t.BaseURL + path)
	q := u.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (t *Transport) newRequest(ctx context.Context, method, path string, data any, query map[string]string) (*http.Request, error) {
	var body io.Reader
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.buildURL(path, query), body)
	if err != nil {
		return nil, err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.AuthToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.AuthToken))
	}
	return req, nil
}

// Do sends a request and returns the body of a 2xx response. Error bodies
// are mapped back to the apperr sentinel named by their code.
func (t *Transport) Do(ctx context.Context, method, path string, data any, query map[string]string) (*Response, error) {
	req, err := t.newRequest(ctx, method, path, data, query)
	if err != nil {
		return nil, err
	}

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	resdata, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 {
		return nil, statusError(method, path, resp.StatusCode, resdata)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Data:       resdata,
	}, nil
}

func statusError(method, path string, status int, body []byte) error {
	var e envelope
	if err := json.Unmarshal(body, &e); err != nil || e.Message == "" {
		e.Message = string(body)
	}
	sentinel := apperr.FromCode(e.Code)
	if sentinel == nil && status == http.StatusUnauthorized {
		sentinel = apperr.ErrUnauthorized
	}
	if sentinel == nil {
		return fmt.Errorf("%s %s failed with status code %d: %s", method, path, status, e.Message)
	}
	return fmt.Errorf("%w: %s %s: %s", sentinel, method, path, e.Message)
}

// Get sends a GET request
func (t *Transport) Get(ctx context.Context, path string, query map[string]string) (*Response, error) {
	return t.Do(ctx, http.MethodGet, path, nil, query)
}

// Post sends a POST request with JSON body
func (t *Transport) Post(ctx context.Context, path string, data any, query map[string]string) (*Response, error) {
	return t.Do(ctx, http.MethodPost, path, data, query)
}

func (t *Transport) Patch(ctx context.Context, path string, data any) (*Response, error) {
	return t.Do(ctx, http.MethodPatch, path, data, nil)
}

func (t *Transport) Delete(ctx context.Context, path string) (*Response, error) {
	return t.Do(ctx, http.MethodDelete, path, nil, nil)
}

// data extracts the data member of a success envelope.
func (r *Response) data() (json.RawMessage, error) {
	var e envelope
	if err := json.Unmarshal(r.Data, &e); err != nil {
		return nil, err
	}
	if e.Data == nil {
		return nil, errors.New("response has no data")
	}
	return e.Data, nil
}
