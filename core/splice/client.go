package splice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"SampleDeck/logger"
	"SampleDeck/model"

	"golang.org/x/time/rate"
)

// DefaultGraphQLURL is the public catalog endpoint.
const DefaultGraphQLURL = "https://surfaces-graphql.splice.com/graphql"

var (
	// ErrTransport is returned when the endpoint answers with a non-success status.
	ErrTransport = errors.New("splice: transport failure")
	// ErrEmptyResponse is returned when a response carries no data for the requested operation.
	ErrEmptyResponse = errors.New("splice: empty response")
)

// GraphQLError is one entry of a GraphQL errors array.
type GraphQLError struct {
	Message string   `json:"message"`
	Path    []string `json:"path,omitempty"`
}

// QueryError reports errors returned in-band by the GraphQL server.
type QueryError struct {
	Operation string
	Errors    []GraphQLError
}

func (e *QueryError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ge := range e.Errors {
		msgs = append(msgs, ge.Message)
	}
	return fmt.Sprintf("splice: %s: %s", e.Operation, strings.Join(msgs, "; "))
}

// Response is the raw GraphQL envelope.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// Client talks to the catalog GraphQL endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client. rps <= 0 disables rate limiting.
func NewClient(endpoint string, timeout time.Duration, rps float64) *Client {
	if endpoint == "" {
		endpoint = DefaultGraphQLURL
	}
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Query sends tmpl with vars merged over its default variables. The template
// itself is never modified.
func (c *Client) Query(ctx context.Context, tmpl Template, vars map[string]any) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("splice: rate limit wait: %w", err)
	}

	body, err := json.Marshal(tmpl.withVariables(vars))
	if err != nil {
		return nil, fmt.Errorf("splice: encode %s: %w", tmpl.OperationName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("splice: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	logger.Debug("Requesting catalog",
		logger.String("operation", tmpl.OperationName))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransport, tmpl.OperationName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %v", ErrTransport, tmpl.OperationName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Error("Catalog request failed",
			logger.String("operation", tmpl.OperationName),
			logger.Int("status", resp.StatusCode),
			logger.String("body", truncate(string(raw), 512)))
		return nil, fmt.Errorf("%w: %s returned status %d", ErrTransport, tmpl.OperationName, resp.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("splice: decode %s response: %w", tmpl.OperationName, err)
	}
	if len(out.Errors) > 0 {
		return nil, &QueryError{Operation: tmpl.OperationName, Errors: out.Errors}
	}

	logger.Debug("Received catalog response",
		logger.String("operation", tmpl.OperationName),
		logger.Duration("elapsed", time.Since(start)))
	return &out, nil
}

// SamplesSearch runs the sample search and returns its asset page.
func (c *Client) SamplesSearch(ctx context.Context, vars map[string]any) (*model.AssetPage, error) {
	resp, err := c.Query(ctx, SamplesSearch, vars)
	if err != nil {
		return nil, err
	}
	var data struct {
		AssetsSearch *model.AssetPage `json:"assetsSearch"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("splice: decode assetsSearch: %w", err)
	}
	if data.AssetsSearch == nil {
		return nil, fmt.Errorf("%w: assetsSearch", ErrEmptyResponse)
	}
	return data.AssetsSearch, nil
}

// CategoryList fetches the tag category tree for a category permalink such
// as "genres" or "styles".
func (c *Client) CategoryList(ctx context.Context, tagCategory string) (*model.TagCategoryList, error) {
	resp, err := c.Query(ctx, CategoryList, map[string]any{"tagCategory": tagCategory})
	if err != nil {
		return nil, err
	}
	var data model.CategoryListData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("splice: decode categories: %w", err)
	}
	if data.Categories == nil {
		return nil, fmt.Errorf("%w: categories %q", ErrEmptyResponse, tagCategory)
	}
	return data.Categories, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
