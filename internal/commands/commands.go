// Package commands wraps the controller server's command endpoints. All
// calls are fire-and-forget: a failure is logged and returned for local
// UI affordances, but nothing is retried and nothing here ever touches
// the synchronized snapshot state.
package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
	bust atomic.Int64 // bumped after every command so media URLs re-fetch
}

func New(base string, log *zap.Logger) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log.Named("commands"),
	}
}

// ForceGreen forces a lane's signal to green.
func (c *Client) ForceGreen(ctx context.Context, laneID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/signal/%d/force", laneID), "", nil)
}

// SimulateEmergency toggles a simulated emergency on a lane.
func (c *Client) SimulateEmergency(ctx context.Context, laneID int, active bool) error {
	path := fmt.Sprintf("/signal/%d/simulate_emergency?active=%t", laneID, active)
	return c.do(ctx, http.MethodPost, path, "", nil)
}

// UploadVideo sends a media file for a lane as a multipart form.
func (c *Client) UploadVideo(ctx context.Context, laneID int, filename string, r io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/upload/%d", laneID), mw.FormDataContentType(), &buf)
}

// ClearVideo removes one lane's media.
func (c *Client) ClearVideo(ctx context.Context, laneID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/video/%d", laneID), "", nil)
}

// ClearAllVideos resets every lane's media.
func (c *Client) ClearAllVideos(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/videos", "", nil)
}

// MediaURL is where a lane's media can be fetched. The cache-busting
// parameter changes after any completed command, so the rendering layer
// re-fetches instead of showing a stale cached copy.
func (c *Client) MediaURL(laneID int) string {
	return fmt.Sprintf("%s/video/%d?t=%s", c.base, laneID, strconv.FormatInt(c.bust.Load(), 10))
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		c.log.Warn("command request build failed", zap.String("path", path), zap.Error(err))
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("command failed", zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("command %s %s: status %d", method, path, resp.StatusCode)
		c.log.Warn("command rejected", zap.Error(err))
		return err
	}

	c.bust.Add(1)
	return nil
}
