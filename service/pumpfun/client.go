// Package pumpfun adapts the launchpad's content upload endpoints, which pin
// images and token metadata to IPFS.
package pumpfun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/metrics"
)

// DefaultBaseURL is the launchpad API root.
const DefaultBaseURL = "https://pump.fun/api"

// UploadResult carries the content URI of an upload.
type UploadResult struct {
	IPFS string `json:"ipfs"`
}

// TokenMetadata is the JSON document pinned for a token launch.
type TokenMetadata struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Twitter     string `json:"twitter,omitempty"`
	Telegram    string `json:"telegram,omitempty"`
	Website     string `json:"website,omitempty"`
	ShowName    bool   `json:"showName"`
}

// uploadResponse covers the field names the endpoints have used for the URI.
type uploadResponse struct {
	IPFS        string `json:"ipfs"`
	MetadataURI string `json:"metadataUri"`
	URI         string `json:"uri"`
}

func (r uploadResponse) uri() string {
	for _, s := range []string{r.IPFS, r.MetadataURI, r.URI} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Client uploads launch content.
type Client struct {
	provider *gateway.Provider
	req      *gateway.Requester
}

// NewClient creates an upload client. The endpoints need no key.
func NewClient(baseURL string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	provider := gateway.NewProvider("pumpfun", m, logger)
	return &Client{
		provider: provider,
		req: gateway.NewRequester("pumpfun", baseURL,
			gateway.WithHTTPClient(httpClient),
			gateway.WithRequesterMetrics(m),
			gateway.WithRequesterLogger(provider.Logger()),
		),
	}
}

// UploadImage uploads image bytes as the multipart "file" field. Size and type
// are not checked here.
func (c *Client) UploadImage(ctx context.Context, data []byte, filename string) gateway.Envelope[*UploadResult] {
	return gateway.Invoke(ctx, c.provider, "upload_image", func(ctx context.Context) (*UploadResult, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write form file: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close multipart body: %w", err)
		}

		body, err := c.req.Do(ctx, http.MethodPost, "/ipfs/image", nil, &buf, w.FormDataContentType())
		if err != nil {
			return nil, err
		}
		return decodeUpload(body)
	})
}

// UploadMetadata uploads a token metadata document.
func (c *Client) UploadMetadata(ctx context.Context, metadata TokenMetadata) gateway.Envelope[*UploadResult] {
	return gateway.Invoke(ctx, c.provider, "upload_metadata", func(ctx context.Context) (*UploadResult, error) {
		payload, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		body, err := c.req.Do(ctx, http.MethodPost, "/ipfs/metadata", nil, bytes.NewReader(payload), "application/json")
		if err != nil {
			return nil, err
		}
		return decodeUpload(body)
	})
}

func decodeUpload(body []byte) (*UploadResult, error) {
	var resp uploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &gateway.ProviderError{Provider: "pumpfun", Body: body, Message: fmt.Sprintf("failed to decode response: %v", err)}
	}
	uri := resp.uri()
	if uri == "" {
		return nil, &gateway.ProviderError{Provider: "pumpfun", Body: body, Message: "upload response has no content URI"}
	}
	return &UploadResult{IPFS: uri}, nil
}
