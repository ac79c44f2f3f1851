// Package netinfo looks up the caller's public IP address and the
// approximate location behind an IP address.
package netinfo

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ZanzyTHEbar/placescout-genkit/internal/httpx"
)

const (
	DefaultPublicIPURL = "https://ifconfig.me/ip"
	DefaultGeoURL      = "http://ip-api.com/json/"
)

// PublicIPClient reports the caller's public IP address.
type PublicIPClient struct {
	http     *httpx.Client
	endpoint string
	logger   *slog.Logger
}

// NewPublicIPClient creates a client for endpoint, or DefaultPublicIPURL when empty.
func NewPublicIPClient(client *httpx.Client, endpoint string, logger *slog.Logger) *PublicIPClient {
	if endpoint == "" {
		endpoint = DefaultPublicIPURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PublicIPClient{http: client, endpoint: endpoint, logger: logger.With("component", "public_ip")}
}

// PublicIP returns the whitespace-trimmed response body.
func (c *PublicIPClient) PublicIP(ctx context.Context) (string, error) {
	c.logger.Info("calling external service to get public IP")
	body, err := c.http.Get(ctx, c.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("public ip lookup: %w", err)
	}
	ip := strings.TrimSpace(string(body))
	c.logger.Debug("public IP response", "ip", ip)
	return ip, nil
}

// GeoClient resolves an IP address to a location record.
type GeoClient struct {
	http    *httpx.Client
	baseURL string
	logger  *slog.Logger
}

// NewGeoClient creates a client for baseURL, or DefaultGeoURL when empty.
// The IP address is appended to baseURL as a path segment.
func NewGeoClient(client *httpx.Client, baseURL string, logger *slog.Logger) *GeoClient {
	if baseURL == "" {
		baseURL = DefaultGeoURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeoClient{http: client, baseURL: baseURL, logger: logger.With("component", "geolocation")}
}

// Locate returns the geolocation service's JSON record for ip, trimmed but otherwise untouched.
func (c *GeoClient) Locate(ctx context.Context, ip string) (string, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "", fmt.Errorf("geolocation: ip address is empty")
	}
	c.logger.Info("calling external service to get location info", "ip", ip)

	body, err := c.http.Get(ctx, c.baseURL+url.PathEscape(ip), nil)
	if err != nil {
		return "", fmt.Errorf("geolocation lookup: %w", err)
	}
	record := strings.TrimSpace(string(body))

	if gjson.Valid(record) {
		fields := gjson.GetMany(record, "status", "city", "country", "message")
		if fields[0].String() == "fail" {
			c.logger.Warn("geolocation service rejected the query", "ip", ip, "message", fields[3].String())
		} else {
			c.logger.Debug("location info response", "city", fields[1].String(), "country", fields[2].String())
		}
	} else {
		c.logger.Debug("location info response is not JSON", "length", len(record))
	}
	return record, nil
}
