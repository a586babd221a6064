package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"astromine-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

type submitPostRequest struct {
	Community string `json:"community"`
	Title     string `json:"title"`
	Capacity  int64  `json:"capacity"`
}

type submitPostResponse struct {
	Id string `json:"id"`
}

// WebhookHost submits posts to an external platform endpoint.
type WebhookHost struct {
	url    string
	client http.Client
}

func NewWebhookHost(cfg models.HostConfig) (*WebhookHost, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("webhook url cannot be empty")
	}

	httpClient, err := createCustomHttpClient(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	return &WebhookHost{url: cfg.WebhookURL, client: httpClient}, nil
}

func createCustomHttpClient(timeout time.Duration) (http.Client, error) {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

func (h *WebhookHost) SubmitPost(ctx context.Context, params SubmitPostParams) (*models.Post, error) {
	body, err := json.Marshal(submitPostRequest{
		Community: params.Community,
		Title:     params.Title,
		Capacity:  params.Capacity,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to encode post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("unable to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to submit post: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("unable to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("host rejected post: status %d: %s", resp.StatusCode, bytes.TrimSpace(payload))
	}

	var decoded submitPostResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("unable to decode response: %w", err)
	}
	if decoded.Id == "" {
		return nil, fmt.Errorf("host response missing post id")
	}

	zap.L().Info("Post submitted to host",
		zap.String("post_id", decoded.Id),
		zap.String("community", params.Community))

	return &models.Post{
		Id:        decoded.Id,
		Community: params.Community,
		Title:     params.Title,
		Capacity:  params.Capacity,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Close releases idle connections held by the client.
func (h *WebhookHost) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
