// Package pinning provides the content-addressed storage client.
// Rendered PDFs and signature artifacts are pinned through a Pinata-style
// HTTP API and later resolved through a public gateway.
package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"albaran/internal/core/apperror"
	"albaran/internal/domain/deliverynote"
)

// Config holds pinning service configuration.
type Config struct {
	// APIKey / APISecret authenticate against the pinning API.
	// When either is empty the client fails fast with a configuration
	// error before attempting any network I/O.
	APIKey    string
	APISecret string

	// BaseURL of the pinning API.
	BaseURL string

	// GatewayURL is the public gateway prefix used to resolve CIDs.
	GatewayURL string

	// Timeout bounds every upload; a timed-out upload is an upload
	// failure and rolls the signing transaction back.
	Timeout time.Duration
}

// DefaultConfig returns production defaults for the hosted service.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "https://api.pinata.cloud",
		GatewayURL: "https://gateway.pinata.cloud",
		Timeout:    30 * time.Second,
	}
}

// Client is an HTTP client for the pinning service.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a new pinning client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

var _ deliverynote.Pinner = (*Client)(nil)

// pinResponse is the relevant subset of the pin API response body.
type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Pin uploads data under the given name and returns its content identifier.
// A non-success status or a response without a CID is an upload failure —
// never a silent success.
func (c *Client) Pin(ctx context.Context, name string, data []byte) (string, error) {
	if err := c.checkConfigured(); err != nil {
		return "", err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}

	metadata, _ := json.Marshal(map[string]string{"name": name})
	if err := writer.WriteField("pinataMetadata", string(metadata)); err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/pinning/pinFileToIPFS", body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("upload failed: malformed response: %w", err)
	}
	if parsed.IpfsHash == "" {
		return "", fmt.Errorf("upload failed: response carries no content identifier")
	}

	return parsed.IpfsHash, nil
}

// Unpin removes a pinned blob. Used to compensate a failed signing
// transaction after the upload already succeeded.
func (c *Client) Unpin(ctx context.Context, cid string) error {
	if cid == "" {
		return nil
	}
	if err := c.checkConfigured(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.cfg.BaseURL+"/pinning/unpin/"+cid, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("unpin failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unpin failed: status %d", resp.StatusCode)
	}
	return nil
}

// GatewayURL resolves a CID to a retrievable URL; empty CID yields "".
func (c *Client) GatewayURL(cid string) string {
	if cid == "" {
		return ""
	}
	return strings.TrimRight(c.cfg.GatewayURL, "/") + "/ipfs/" + cid
}

func (c *Client) checkConfigured() error {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return apperror.NewNotConfigured("pinning service")
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("pinata_api_key", c.cfg.APIKey)
	req.Header.Set("pinata_secret_api_key", c.cfg.APISecret)
}
