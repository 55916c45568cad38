package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/duetly/api/internal/config"
	"github.com/duetly/api/internal/engine"
	"github.com/duetly/api/internal/model"
)

// Publisher is the external publish collaborator: it accepts a finished duet
// artifact plus its composition facts and returns a published-content
// reference. Failures carry the *engine.PublishError classification.
type Publisher interface {
	Publish(ctx context.Context, req *PublishRequest) (*PublishResponse, error)
	IsConfigured() bool
}

// PublishRequest is the payload shipped to the publish service.
type PublishRequest struct {
	OriginalVideoID string                `json:"original_video_id"`
	ArtifactURL     string                `json:"artifact_url"`
	DurationMs      int64                 `json:"duration_ms"`
	Style           model.DuetStyle       `json:"style"`
	AudioSourceMode model.AudioSourceMode `json:"audio_source_mode"`
	Caption         string                `json:"caption"`
	Tags            []string              `json:"tags"`
	UserID          string                `json:"user_id"`
}

// PublishResponse is the publish service's acknowledgement.
type PublishResponse struct {
	PublishedID string `json:"published_id"`
	ContentURL  string `json:"content_url"`
}

// PublishClient implements Publisher over the publish service's HTTP API.
type PublishClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewPublishClient creates a client for the external publish service.
func NewPublishClient(cfg *config.PublishConfig) *PublishClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PublishClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.ServiceURL, "/"),
		apiKey:     cfg.APIKey,
	}
}

// IsConfigured returns true when a service URL is set.
func (c *PublishClient) IsConfigured() bool {
	return c.baseURL != ""
}

// Publish posts the artifact to the publish service. Transport failures map
// to network_failure (retryable with the same artifact), 4xx responses to
// rejected with the server message surfaced verbatim, anything else to
// unknown.
func (c *PublishClient) Publish(ctx context.Context, req *PublishRequest) (*PublishResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &engine.PublishError{Code: model.PublishUnknown, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/duets", bytes.NewReader(body))
	if err != nil {
		return nil, &engine.PublishError{Code: model.PublishUnknown, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &engine.PublishError{Code: model.PublishNetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &engine.PublishError{Code: model.PublishNetworkFailure, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var result PublishResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, &engine.PublishError{Code: model.PublishUnknown, Err: fmt.Errorf("invalid publish response: %w", err)}
		}
		return &result, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &engine.PublishError{Code: model.PublishRejected, Message: rejectionMessage(respBody, resp.StatusCode)}

	default:
		return nil, &engine.PublishError{
			Code: model.PublishUnknown,
			Err:  fmt.Errorf("publish service returned status %d", resp.StatusCode),
		}
	}
}

// rejectionMessage extracts the server's validation message so it can be
// shown to the user verbatim.
func rejectionMessage(body []byte, status int) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return fmt.Sprintf("publish rejected with status %d", status)
}
