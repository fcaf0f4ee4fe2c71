package utils

import (
	"errors"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var ErrInvalidLink = errors.New("invalid link")

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "fbclid", "gclid"}

// NormalizeLink turns user input into an https URL with an ASCII host and no
// tracking parameters.
func NormalizeLink(raw string) (string, error) {
	raw = strings.Trim(strings.TrimSpace(raw), "<>")
	if raw == "" {
		return "", ErrInvalidLink
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidLink
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" || !strings.Contains(host, ".") {
		return "", ErrInvalidLink
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	if port := parsed.Port(); port != "" {
		host += ":" + port
	}

	parsed.Host = host
	parsed.User = nil
	parsed.Fragment = ""
	query := parsed.Query()
	for _, key := range trackingParams {
		query.Del(key)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
