package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Mock is a fake S3 HTTP endpoint backing a Store built by NewMockForTests.
// It understands the Head/Put/Delete/ListObjectsV2 requests the Store issues.
type Mock struct {
	mu       sync.Mutex
	state    map[string]mockObj
	failures map[string]int // method -> status code returned instead of serving
	calls    map[string]int
	pageSize int
	latency  time.Duration
}

type mockObj struct {
	body        []byte
	contentType string
}

// NewMockForTests returns a Store wired to an in-memory fake transport plus the
// fake itself so tests can inspect objects and inject failures. Retries are
// disabled so injected failures surface on the first attempt.
func NewMockForTests(bucket string) (*Store, *Mock) {
	m := newMock()
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(DefaultRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: m}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.RetryMaxAttempts = 1
	})
	return &Store{client: client, bucket: bucket, presign: s3.NewPresignClient(client)}, m
}

func newMock() *Mock {
	return &Mock{state: make(map[string]mockObj), failures: make(map[string]int), calls: make(map[string]int)}
}

// Fail makes every subsequent request with method answer with status.
// A zero status clears the failure.
func (m *Mock) Fail(method string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == 0 {
		delete(m.failures, method)
		return
	}
	m.failures[method] = status
}

// SetPageSize limits ListObjectsV2 pages to exercise continuation tokens.
func (m *Mock) SetPageSize(n int) {
	m.mu.Lock()
	m.pageSize = n
	m.mu.Unlock()
}

// SetLatency delays every response by d, or until the request is cancelled.
func (m *Mock) SetLatency(d time.Duration) {
	m.mu.Lock()
	m.latency = d
	m.mu.Unlock()
}

// Calls reports how many requests with method reached the fake.
func (m *Mock) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Keys returns the stored keys in order.
func (m *Mock) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.state))
	for k := range m.state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Object returns the stored body and content type for key.
func (m *Mock) Object(key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.state[key]
	return st.body, st.contentType, ok
}

func (m *Mock) RoundTrip(req *http.Request) (*http.Response, error) { //nolint:cyclop
	m.mu.Lock()
	m.calls[req.Method]++
	latency := m.latency
	m.mu.Unlock()
	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if status, ok := m.failures[req.Method]; ok {
		return respond(status, "application/xml", "<Error><Code>InternalError</Code><Message>injected</Message></Error>", nil), nil
	}
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && strings.Contains(req.URL.RawQuery, "list-type=2") {
		return m.list(req), nil
	}
	switch req.Method {
	case http.MethodHead:
		if st, ok := m.state[key]; ok {
			h := http.Header{}
			h.Set("Content-Length", strconv.Itoa(len(st.body)))
			h.Set("ETag", "\"etag123\"")
			h.Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
			return respond(http.StatusOK, st.contentType, "", h), nil
		}
		return respond(http.StatusNotFound, "", "", nil), nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunkedLite(body); ok { // handle aws-chunked encoding
			body = dec
		}
		if _, exists := m.state[key]; exists && req.Header.Get("If-None-Match") == "*" {
			return respond(http.StatusPreconditionFailed, "application/xml", "<Error><Code>PreconditionFailed</Code><Message>At least one of the pre-conditions you specified did not hold</Message></Error>", nil), nil
		}
		m.state[key] = mockObj{body: body, contentType: req.Header.Get("Content-Type")}
		h := http.Header{}
		h.Set("ETag", "\"etag123\"")
		return respond(http.StatusOK, "", "", h), nil
	case http.MethodDelete:
		delete(m.state, key)
		return respond(http.StatusNoContent, "", "", nil), nil
	}
	return respond(http.StatusNotImplemented, "", "", nil), nil
}

func (m *Mock) list(req *http.Request) *http.Response {
	prefix := req.URL.Query().Get("prefix")
	start := 0
	if tok := req.URL.Query().Get("continuation-token"); tok != "" {
		start, _ = strconv.Atoi(strings.TrimPrefix(tok, "page-"))
	}
	var keys []string
	for k := range m.state {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if start > len(keys) {
		start = len(keys)
	}
	end := len(keys)
	if m.pageSize > 0 && start+m.pageSize < end {
		end = start + m.pageSize
	}
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\"?><ListBucketResult>")
	if end < len(keys) {
		fmt.Fprintf(&b, "<IsTruncated>true</IsTruncated><NextContinuationToken>page-%d</NextContinuationToken>", end)
	} else {
		b.WriteString("<IsTruncated>false</IsTruncated>")
	}
	for _, k := range keys[start:end] {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(m.state[k].body))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, "application/xml", b.String(), nil)
}

func respond(status int, contentType, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader([]byte(body))), Header: header}
}

// decodeChunkedLite decodes a minimal single-chunk aws-chunked style payload: <hex>\r\n<body>\r\n0\r\n...
func decodeChunkedLite(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	sz, err := strconv.ParseInt(strings.SplitN(parts[0], ";", 2)[0], 16, 64)
	if err != nil || sz <= 0 || int64(len(parts[1])) != sz || !strings.HasPrefix(parts[2], "0") {
		return nil, false
	}
	return []byte(parts[1]), true
}
