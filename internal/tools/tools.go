// Package tools binds the catalog's tool names to their implementations.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"

	placescout "github.com/ZanzyTHEbar/placescout-genkit"
	"github.com/ZanzyTHEbar/placescout-genkit/internal/adapters"
)

// IPLookup reports the caller's public IP address.
type IPLookup interface {
	PublicIP(ctx context.Context) (string, error)
}

// GeoLookup returns the geolocation record for an IP address.
type GeoLookup interface {
	Locate(ctx context.Context, ip string) (string, error)
}

// PlaceResolver resolves a place name to an article.
type PlaceResolver interface {
	Resolve(ctx context.Context, name string) placescout.ResolutionResult
}

// Dependencies are the collaborators behind the three tools.
type Dependencies struct {
	PublicIP IPLookup
	Geo      GeoLookup
	Resolver PlaceResolver
	Logger   *slog.Logger
}

// SetupTools creates the full tool set, one per catalog entry.
func SetupTools(deps Dependencies) ([]placescout.Tool, error) {
	if deps.PublicIP == nil || deps.Geo == nil || deps.Resolver == nil {
		return nil, placescout.NewConfigurationError("public ip, geolocation and resolver dependencies are required", nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	publicIP, err := adapters.NewGoToolAdapter(placescout.ToolGetPublicIP,
		func(ctx context.Context, _ map[string]any) (string, error) {
			return deps.PublicIP.PublicIP(ctx)
		})
	if err != nil {
		return nil, err
	}

	location, err := adapters.NewGoToolAdapter(placescout.ToolGetLocation,
		func(ctx context.Context, args map[string]any) (string, error) {
			return deps.Geo.Locate(ctx, args["ip_address"].(string))
		},
		adapters.WithValidator(validateIPAddress))
	if err != nil {
		return nil, err
	}

	info, err := adapters.NewGoToolAdapter(placescout.ToolGetLocationInfo,
		func(ctx context.Context, args map[string]any) (string, error) {
			name := args["name"].(string)
			result := deps.Resolver.Resolve(ctx, name)
			logger.Debug("location facts payload", "requested", name, "kind", result.Kind, "title", result.ResolvedTitle)
			return result.Encode(), nil
		})
	if err != nil {
		return nil, err
	}

	return []placescout.Tool{publicIP, location, info}, nil
}

// validateIPAddress rejects arguments that are not a literal IPv4 or IPv6 address.
func validateIPAddress(args map[string]any) error {
	ip, _ := args["ip_address"].(string)
	if net.ParseIP(strings.TrimSpace(ip)) == nil {
		return fmt.Errorf("'%s' is not an IP address", ip)
	}
	return nil
}
