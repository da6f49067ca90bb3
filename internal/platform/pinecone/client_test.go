package pinecone

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
)

type fakeTransport struct {
	requests []*http.Request
	respond  func(req *http.Request) *http.Response
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	return f.respond(req), nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, transport *fakeTransport) Client {
	t.Helper()
	c, err := New(logger.NewNop(), Config{APIKey: "test-key", Transport: transport})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestDescribeIndex(t *testing.T) {
	transport := &fakeTransport{respond: func(req *http.Request) *http.Response {
		return jsonResponse(200, `{"name": "ad-knowledge", "host": "ad-knowledge.svc.pinecone.io", "dimension": 1536}`)
	}}
	c := newTestClient(t, transport)

	desc, err := c.DescribeIndex(context.Background(), "ad-knowledge")
	if err != nil {
		t.Fatalf("describe failed: %v", err)
	}
	if desc.Host != "ad-knowledge.svc.pinecone.io" {
		t.Fatalf("host = %q", desc.Host)
	}

	req := transport.requests[0]
	if req.Method != "GET" || !strings.HasSuffix(req.URL.Path, "/indexes/ad-knowledge") {
		t.Fatalf("request = %s %s", req.Method, req.URL)
	}
	if req.Header.Get("Api-Key") != "test-key" {
		t.Fatalf("api key header missing")
	}
	if req.Header.Get("X-Pinecone-Api-Version") == "" {
		t.Fatalf("api version header missing")
	}
}

func TestDescribeIndexEmptyHost(t *testing.T) {
	transport := &fakeTransport{respond: func(req *http.Request) *http.Response {
		return jsonResponse(200, `{"name": "ad-knowledge", "host": ""}`)
	}}
	c := newTestClient(t, transport)

	if _, err := c.DescribeIndex(context.Background(), "ad-knowledge"); err == nil {
		t.Fatalf("expected error for empty host")
	}
}

func TestQuery(t *testing.T) {
	transport := &fakeTransport{respond: func(req *http.Request) *http.Response {
		return jsonResponse(200, `{"matches": [{"id": "1", "score": 0.92, "metadata": {"text": "chunk"}}]}`)
	}}
	c := newTestClient(t, transport)

	resp, err := c.Query(context.Background(), "ad-knowledge.svc.pinecone.io", QueryRequest{
		Vector:          []float32{0.1, 0.2},
		TopK:            5,
		IncludeMetadata: true,
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(resp.Matches) != 1 || resp.Matches[0].Score != 0.92 {
		t.Fatalf("matches = %#v", resp.Matches)
	}

	req := transport.requests[0]
	if req.URL.String() != "https://ad-knowledge.svc.pinecone.io/query" {
		t.Fatalf("url = %s", req.URL)
	}
}

func TestQueryValidation(t *testing.T) {
	c := newTestClient(t, &fakeTransport{respond: func(req *http.Request) *http.Response {
		return jsonResponse(200, `{}`)
	}})

	if _, err := c.Query(context.Background(), "", QueryRequest{Vector: []float32{0.1}}); err == nil {
		t.Fatalf("expected error for missing host")
	}
	if _, err := c.Query(context.Background(), "h", QueryRequest{}); err == nil {
		t.Fatalf("expected error for missing vector")
	}
}

func TestQueryHTTPError(t *testing.T) {
	transport := &fakeTransport{respond: func(req *http.Request) *http.Response {
		return jsonResponse(503, `{"error": "unavailable"}`)
	}}
	c := newTestClient(t, transport)

	_, err := c.Query(context.Background(), "h", QueryRequest{Vector: []float32{0.1}})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v", err)
	}
}
