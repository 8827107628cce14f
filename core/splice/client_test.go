package splice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type capturedRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

func newTestServer(t *testing.T, handler func(req capturedRequest) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var req capturedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		status, body := handler(req)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestQueryMergesVariablesWithoutMutatingTemplate(t *testing.T) {
	var got capturedRequest
	srv := newTestServer(t, func(req capturedRequest) (int, string) {
		got = req
		return http.StatusOK, `{"data":{}}`
	})

	c := NewClient(srv.URL, 5*time.Second, 0)
	_, err := c.Query(context.Background(), SamplesSearch, map[string]any{
		"query": "drum",
		"tags":  []string{"t1"},
		"page":  3,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if got.OperationName != "SamplesSearch" {
		t.Errorf("operationName = %q", got.OperationName)
	}
	if got.Variables["query"] != "drum" {
		t.Errorf("query variable = %v", got.Variables["query"])
	}
	if got.Variables["page"] != float64(3) {
		t.Errorf("page variable = %v", got.Variables["page"])
	}
	if got.Variables["order"] != "DESC" {
		t.Errorf("default order not sent: %v", got.Variables["order"])
	}

	if SamplesSearch.Variables["query"] != nil {
		t.Errorf("template query default was modified: %v", SamplesSearch.Variables["query"])
	}
	if tags := SamplesSearch.Variables["tags"].([]string); len(tags) != 0 {
		t.Errorf("template tags default was modified: %v", tags)
	}
}

func TestQueryNonSuccessIsTransportError(t *testing.T) {
	srv := newTestServer(t, func(capturedRequest) (int, string) {
		return http.StatusBadGateway, "upstream down"
	})

	c := NewClient(srv.URL, 5*time.Second, 0)
	_, err := c.Query(context.Background(), CategoryList, nil)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
}

func TestQueryGraphQLErrors(t *testing.T) {
	srv := newTestServer(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"errors":[{"message":"bad tag"}]}`
	})

	c := NewClient(srv.URL, 5*time.Second, 0)
	_, err := c.Query(context.Background(), SamplesSearch, nil)
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("err = %v, want *QueryError", err)
	}
	if qe.Errors[0].Message != "bad tag" {
		t.Errorf("message = %q", qe.Errors[0].Message)
	}
}

func TestSamplesSearchDecodesPage(t *testing.T) {
	srv := newTestServer(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{"assetsSearch":{
			"items":[{"uuid":"a1","name":"kick.wav","duration":1500,"asset_category_slug":"oneshot",
				"files":[{"uuid":"f1","url":"https://cdn.example/a1"}],
				"parents":{"items":[{"uuid":"p1","name":"Pack One"}]}}],
			"tag_summary":[{"count":3,"tag":{"uuid":"t1","label":"Hip Hop"}}],
			"pagination_metadata":{"currentPage":1,"totalPages":10},
			"response_metadata":{"records":500}}}}`
	})

	c := NewClient(srv.URL, 5*time.Second, 0)
	page, err := c.SamplesSearch(context.Background(), nil)
	if err != nil {
		t.Fatalf("SamplesSearch failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].UUID != "a1" {
		t.Fatalf("items = %+v", page.Items)
	}
	if page.ResponseMetadata.Records != 500 {
		t.Errorf("records = %d", page.ResponseMetadata.Records)
	}
	if page.Items[0].PrimaryFile().URL != "https://cdn.example/a1" {
		t.Errorf("primary file = %+v", page.Items[0].PrimaryFile())
	}
	if page.Items[0].PrimaryPack().Name != "Pack One" {
		t.Errorf("primary pack = %+v", page.Items[0].PrimaryPack())
	}
	if len(page.TagSummary) != 1 || page.TagSummary[0].Tag.Label != "Hip Hop" {
		t.Errorf("tag summary = %+v", page.TagSummary)
	}
}

func TestCategoryListEmpty(t *testing.T) {
	srv := newTestServer(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{"categories":null}}`
	})

	c := NewClient(srv.URL, 5*time.Second, 0)
	_, err := c.CategoryList(context.Background(), "genres")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestQueryHonoursContextWhileRateLimited(t *testing.T) {
	srv := newTestServer(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{}}`
	})

	c := NewClient(srv.URL, 5*time.Second, 0.001)
	if _, err := c.Query(context.Background(), CategoryList, nil); err != nil {
		t.Fatalf("first query should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Query(ctx, CategoryList, nil); err == nil {
		t.Fatal("second query should fail waiting for the limiter")
	}
}
