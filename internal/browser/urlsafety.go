package browser

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
)

// URLSafetyError represents a URL that was blocked for safety reasons
type URLSafetyError struct {
	URL    string
	Reason string
}

func (e *URLSafetyError) Error() string {
	return fmt.Sprintf("URL blocked: %s", e.Reason)
}

// lookupIP resolves a host; replaced in tests so they never hit DNS.
var lookupIP = func(ctx context.Context, host string) ([]net.IP, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.IP)
	}
	return ips, nil
}

// ValidateURLSafety checks a navigation target when private networks are
// blocked. Only http/https is allowed, and the host is resolved so numeric
// encodings (2130706433, 0x7f000001, 127.1) and DNS names pointing inward
// are caught by address, not by spelling.
func ValidateURLSafety(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &URLSafetyError{URL: rawURL, Reason: fmt.Sprintf("invalid URL: %v", err)}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return &URLSafetyError{URL: rawURL, Reason: fmt.Sprintf("scheme '%s' not allowed, only http/https", parsed.Scheme)}
	}

	host := parsed.Hostname()
	if host == "" {
		return &URLSafetyError{URL: rawURL, Reason: "empty hostname"}
	}
	if isCloudMetadataHost(host) {
		return &URLSafetyError{URL: rawURL, Reason: fmt.Sprintf("cloud metadata hostname blocked: %s", host)}
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return &URLSafetyError{URL: rawURL, Reason: "loopback address blocked (localhost)"}
	}

	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		ips, err = lookupIP(ctx, host)
		if err != nil {
			return &URLSafetyError{URL: rawURL, Reason: fmt.Sprintf("DNS resolution failed: %v", err)}
		}
	}

	for _, ip := range ips {
		if reason := isBlockedIP(ip); reason != "" {
			L_debug("browser: blocked navigation target", "url", rawURL, "host", host, "ip", ip.String(), "reason", reason)
			return &URLSafetyError{URL: rawURL, Reason: fmt.Sprintf("%s (%s resolves to %s)", reason, host, ip.String())}
		}
	}

	L_trace("browser: URL passed safety check", "url", rawURL, "ips", fmt.Sprintf("%v", ips))
	return nil
}

// isBlockedIP returns a reason string if the IP should be blocked, empty string if OK
func isBlockedIP(ip net.IP) string {
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4 // unwrap IPv4-mapped IPv6
	}
	switch {
	case ip.IsLoopback():
		return "loopback address blocked"
	case ip.IsPrivate():
		return "private network address blocked"
	case ip.IsLinkLocalUnicast():
		// includes 169.254.169.254
		return "link-local address blocked"
	case ip.IsMulticast(), ip.IsLinkLocalMulticast(), ip.IsInterfaceLocalMulticast():
		return "multicast address blocked"
	case ip.IsUnspecified():
		return "unspecified address blocked"
	}
	return ""
}

var metadataHosts = []string{
	"metadata.google.internal",
	"metadata.goog",
	"kubernetes.default.svc",
	"kubernetes.default",
	"metadata",
}

func isCloudMetadataHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, mh := range metadataHosts {
		if host == mh || strings.HasSuffix(host, "."+mh) {
			return true
		}
	}
	return false
}
