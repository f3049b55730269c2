// Package client is a Go client for the notes REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/mrshanahan/notes-service/pkg/notes"
)

type Client struct {
	URL  string
	HTTP *http.Client
}

// NewClient returns a client for the API rooted at baseURL. Requests carry
// bearer tokens from ts; a nil ts sends unauthenticated requests.
func NewClient(ctx context.Context, baseURL string, ts oauth2.TokenSource) *Client {
	httpClient := http.DefaultClient
	if ts != nil {
		httpClient = oauth2.NewClient(ctx, ts)
	}
	return &Client{URL: baseURL, HTTP: httpClient}
}

// NewTokenClient is NewClient with a fixed access token.
func NewTokenClient(ctx context.Context, baseURL, accessToken string) *Client {
	return NewClient(ctx, baseURL, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
}

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Detail     string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("invalid status code: %d (response: %s, request: %s)", e.StatusCode, e.Detail, e.RequestID)
	}
	return fmt.Sprintf("invalid status code: %d (response: %s)", e.StatusCode, e.Detail)
}

type NoteInput struct {
	Title   string     `json:"title"`
	Content string     `json:"content"`
	OwnerID *uuid.UUID `json:"owner_id,omitempty"`
}

type ListOptions struct {
	Skip    int
	Limit   int
	OwnerID *uuid.UUID
}

func (c *Client) ListNotes(ctx context.Context, opts ListOptions) (*notes.NoteList, error) {
	query := url.Values{}
	if opts.Skip > 0 {
		query.Set("skip", strconv.Itoa(opts.Skip))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.OwnerID != nil {
		query.Set("owner_id", opts.OwnerID.String())
	}

	list := &notes.NoteList{}
	if err := c.invoke(ctx, http.MethodGet, "/notes", query, nil, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) CreateNote(ctx context.Context, in NoteInput) (*notes.Note, error) {
	note := &notes.Note{}
	if err := c.invoke(ctx, http.MethodPost, "/notes", nil, in, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (c *Client) GetNote(ctx context.Context, id uuid.UUID) (*notes.Note, error) {
	note := &notes.Note{}
	if err := c.invoke(ctx, http.MethodGet, "/notes/"+id.String(), nil, nil, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (c *Client) UpdateNote(ctx context.Context, id uuid.UUID, title, content string) (*notes.Note, error) {
	note := &notes.Note{}
	in := NoteInput{Title: title, Content: content}
	if err := c.invoke(ctx, http.MethodPut, "/notes/"+id.String(), nil, in, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (c *Client) DeleteNote(ctx context.Context, id uuid.UUID) error {
	return c.invoke(ctx, http.MethodDelete, "/notes/"+id.String(), nil, nil, nil)
}

// Private functions

func (c *Client) invoke(ctx context.Context, method, path string, query url.Values, in, out any) error {
	requestUrl, err := url.JoinPath(c.URL, path)
	if err != nil {
		return fmt.Errorf("error building URL path: %w", err)
	}
	if len(query) > 0 {
		requestUrl += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("error JSON-encoding request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestUrl, body)
	if err != nil {
		return fmt.Errorf("error building API request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("error invoking API: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := validateResponse(resp)
	if err != nil {
		return err
	}
	if out == nil || len(respBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("error JSON-decoding response body: %w", err)
	}
	return nil
}

func validateResponse(resp *http.Response) ([]byte, error) {
	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Detail    string `json:"detail"`
			RequestID string `json:"request_id"`
		}
		if json.Unmarshal(respBytes, &body) == nil && body.Detail != "" {
			apiErr.Detail = body.Detail
			apiErr.RequestID = body.RequestID
		} else {
			apiErr.Detail = strings.TrimSpace(string(respBytes))
		}
		return nil, apiErr
	}

	return respBytes, nil
}
