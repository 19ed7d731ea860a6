// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validateNATSURL validates that the NATS URL is properly formatted.
// Supports nats://, tls://, ws:// and wss:// schemes. A comma-separated
// server list is validated entry by entry.
func validateNATSURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("url is empty")
	}
	for _, entry := range strings.Split(rawURL, ",") {
		parsedURL, err := url.Parse(strings.TrimSpace(entry))
		if err != nil {
			return fmt.Errorf("failed to parse URL: %w", err)
		}

		validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
		if !validSchemes[parsedURL.Scheme] {
			return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
		}

		if parsedURL.Host == "" {
			return fmt.Errorf("host is required (e.g., localhost:4222, nats.example.com)")
		}
	}
	return nil
}
