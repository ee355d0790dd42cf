package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/skobkin/meshhttp/internal/connectors"
)

const (
	pathRestart      = "/restart"
	pathReport       = "/json/report"
	pathScanNetworks = "/json/scanNetworks"
	pathSPIFFSBrowse = "/json/spiffs/browse/static"
	pathSPIFFSDelete = "/json/spiffs/delete/static"
	pathBlink        = "/json/blink"
)

// AdminClient issues one-shot administrative requests against the same base
// address as its transport. It does not touch the poll/retry machinery;
// only RestartDevice changes the device status.
//
// Every failure is logged and returned; result pointers are nil on failure.
type AdminClient struct {
	tr     *HTTPTransport
	logger *slog.Logger
}

func (t *HTTPTransport) Admin() *AdminClient {
	return &AdminClient{
		tr:     t,
		logger: transportLogger(t.logger, httpTransportName, "client", "admin"),
	}
}

// RestartDevice asks the device to reboot and emits Restarting on success.
func (c *AdminClient) RestartDevice(ctx context.Context) error {
	runCtx := c.tr.runContext()
	if _, err := c.tr.do(ctx, http.MethodPost, pathRestart, nil, nil, nil); err != nil {
		c.logger.Warn("restart device failed", "error", err)

		return err
	}
	c.logger.Info("device restart requested")
	c.tr.status.emit(runCtx, connectors.StatusRestarting, nil, false)

	return nil
}

func (c *AdminClient) Statistics(ctx context.Context) (*StatisticsResponse, error) {
	var out StatisticsResponse
	if err := c.getJSON(ctx, http.MethodGet, pathReport, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *AdminClient) Networks(ctx context.Context) (*NetworksResponse, error) {
	var out NetworksResponse
	if err := c.getJSON(ctx, http.MethodGet, pathScanNetworks, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *AdminClient) SPIFFS(ctx context.Context) (*SPIFFSResponse, error) {
	var out SPIFFSResponse
	if err := c.getJSON(ctx, http.MethodGet, pathSPIFFSBrowse, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DeleteSPIFFS removes file from the static filesystem and returns the updated listing.
func (c *AdminClient) DeleteSPIFFS(ctx context.Context, file string) (*SPIFFSResponse, error) {
	var out SPIFFSResponse
	query := url.Values{"delete": []string{file}}
	if err := c.getJSON(ctx, http.MethodDelete, pathSPIFFSDelete, query, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *AdminClient) BlinkLED(ctx context.Context) error {
	if _, err := c.tr.do(ctx, http.MethodPost, pathBlink, nil, nil, nil); err != nil {
		c.logger.Warn("blink led failed", "error", err)

		return err
	}

	return nil
}

func (c *AdminClient) getJSON(ctx context.Context, method, path string, query url.Values, out any) error {
	header := http.Header{"Accept": []string{"application/json"}}
	raw, err := c.tr.do(ctx, method, path, query, nil, header)
	if err != nil {
		c.logger.Warn("admin request failed", "method", method, "path", path, "error", err)

		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		err = fmt.Errorf("decode %s response: %w", path, err)
		c.logger.Warn("admin response malformed", "method", method, "path", path, "error", err)

		return err
	}

	return nil
}
