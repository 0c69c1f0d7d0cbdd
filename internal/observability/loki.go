package observability

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

// LokiClient pushes structured entries to Grafana Loki.
type LokiClient struct {
	url        string
	username   string
	apiKey     string
	httpClient *http.Client
	enabled    bool
	appName    string
	instanceID string

	wg sync.WaitGroup
}

// Loki Push API format
type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

var defaultClient *LokiClient

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// NewLokiClient returns a client pushing to baseURL. An incomplete
// configuration yields a disabled client.
func NewLokiClient(baseURL, username, apiKey string) *LokiClient {
	c := &LokiClient{
		appName:    firstNonEmpty(os.Getenv("APP_ENV"), "luma-mcp"),
		instanceID: firstNonEmpty(os.Getenv("INSTANCE_ID"), hostname(), "local"),
	}
	if baseURL == "" || username == "" || apiKey == "" {
		return c
	}
	c.url = baseURL + "/loki/api/v1/push"
	c.username = username
	c.apiKey = apiKey
	c.httpClient = &http.Client{Timeout: 5 * time.Second}
	c.enabled = true
	return c
}

func hostname() string {
	h, _ := os.Hostname()
	return h
}

// Init configures the process-wide Loki client from GRAFANA_LOKI_URL,
// GRAFANA_LOKI_USER and GRAFANA_LOKI_API_KEY.
func Init() {
	defaultClient = NewLokiClient(
		os.Getenv("GRAFANA_LOKI_URL"),
		os.Getenv("GRAFANA_LOKI_USER"),
		os.Getenv("GRAFANA_LOKI_API_KEY"),
	)
	if defaultClient.enabled {
		log.Println("[observability] Loki client initialized")
	} else {
		log.Println("[observability] Loki not configured, remote logging disabled")
	}
}

// Flush waits for in-flight pushes, up to timeout.
func Flush(timeout time.Duration) {
	if defaultClient != nil {
		defaultClient.Flush(timeout)
	}
}

// Push sends one entry asynchronously.
func Push(labels map[string]string, data map[string]any) {
	if defaultClient == nil {
		return
	}
	defaultClient.Push(labels, data)
}

// Push sends one entry asynchronously. It is a no-op when disabled.
func (c *LokiClient) Push(labels map[string]string, data map[string]any) {
	if !c.enabled {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.push(labels, data)
	}()
}

// Flush waits for in-flight pushes, up to timeout.
func (c *LokiClient) Flush(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("[observability] Loki flush timed out after %s", timeout)
	}
}

func (c *LokiClient) push(labels map[string]string, data map[string]any) {
	stream := map[string]string{
		"app":      c.appName,
		"instance": c.instanceID,
	}
	for k, v := range labels {
		stream[k] = v
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		log.Printf("[observability] Loki: failed to marshal data: %v", err)
		return
	}

	req := lokiPushRequest{
		Streams: []lokiStream{{
			Stream: stream,
			Values: [][]string{{strconv.FormatInt(time.Now().UnixNano(), 10), string(dataJSON)}},
		}},
	}
	body, err := json.Marshal(req)
	if err != nil {
		log.Printf("[observability] Loki: failed to marshal request: %v", err)
		return
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		log.Printf("[observability] Loki: failed to create request: %v", err)
		return
	}
	httpReq.SetBasicAuth(c.username, c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("[observability] Loki: failed to send: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[observability] Loki: unexpected status code: %d", resp.StatusCode)
	}
}
