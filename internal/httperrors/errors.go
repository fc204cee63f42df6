// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors turns transport failures from the identity backend into
// user-friendly messages. It understands net/http errors and gRPC status codes.
package httperrors

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Category classifies a network failure.
type Category string

const (
	Timeout           Category = "timeout"
	DNS               Category = "dns"
	ConnectionRefused Category = "connection_refused"
	TLS               Category = "tls"
	Server            Category = "server"
	Generic           Category = "generic"
)

// Description is what the user is shown for a failure.
type Description struct {
	Category Category
	Title    string
	Hints    []string
}

// FormatNetworkError prints a user-friendly explanation of err and returns it wrapped.
// action describes what was being attempted, e.g. "signing in".
func FormatNetworkError(err error, action, host string) error {
	if err == nil {
		return nil
	}
	d := Describe(err, action, host)

	pterm.Println(d.Title)
	pterm.Println()
	for _, h := range d.Hints {
		pterm.Println("  • " + h)
	}
	if len(d.Hints) > 0 {
		pterm.Println()
	}
	if d.Category == Generic {
		pterm.Debug.Printf("Technical details: %s\n", abbreviate(err.Error(), 100))
	}
	return fmt.Errorf("network error: %w", err)
}

// IsNetworkError reports whether err looks like a transport failure rather than
// a refusal by the backend.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return isTimeoutError(err) || isDNSError(err) || isConnectionRefusedError(err) || isSSLError(err) ||
		isServerError(err.Error())
}

// Describe classifies err without printing anything.
func Describe(err error, action, host string) Description {
	if host == "" {
		host = "the identity service"
	}

	switch {
	case isTimeoutError(err):
		return Description{
			Category: Timeout,
			Title:    fmt.Sprintf("⏱️  Connection timeout while %s", action),
			Hints: []string{
				"Slow internet connection",
				"The identity service is under heavy load",
				"A network firewall is blocking the connection",
			},
		}
	case isDNSError(err):
		return Description{
			Category: DNS,
			Title:    fmt.Sprintf("🌐 Cannot resolve %s while %s", host, action),
			Hints: []string{
				"Your internet connection is working",
				"DNS settings are correct",
			},
		}
	case isConnectionRefusedError(err):
		return Description{
			Category: ConnectionRefused,
			Title:    fmt.Sprintf("🚫 Connection refused by %s while %s", host, action),
			Hints: []string{
				"The service is temporarily down",
				"Wrong server address or port in your storefront config",
			},
		}
	case isSSLError(err):
		return Description{
			Category: TLS,
			Title:    fmt.Sprintf("🔒 Secure connection failed while %s", action),
			Hints: []string{
				"Check your system date and time",
				"Verify network proxy settings",
			},
		}
	case isServerError(err.Error()):
		return Description{
			Category: Server,
			Title:    fmt.Sprintf("⚠️  Server error while %s", action),
			Hints:    []string{"The problem is on the service side; please try again in a few minutes"},
		}
	default:
		return Description{
			Category: Generic,
			Title:    fmt.Sprintf("❌ Cannot reach %s while %s", host, action),
			Hints: []string{
				"Your internet connection",
				"Firewall settings that might block HTTPS requests",
			},
		}
	}
}

// isTimeoutError checks if the error is a timeout error.
func isTimeoutError(err error) bool {
	if status.Code(err) == codes.DeadlineExceeded {
		return true
	}
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isDNSError checks if the error is a DNS resolution error.
func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// isConnectionRefusedError checks if the error is a connection refused error.
func isConnectionRefusedError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

// isSSLError checks if the error is an SSL/TLS error.
func isSSLError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "x509") ||
		strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "handshake")
}

// isServerError checks if the error indicates a server-side problem (5xx errors).
func isServerError(errStr string) bool {
	lower := strings.ToLower(errStr)
	for _, s := range []string{": 500", ": 502", ": 503", ": 504", "internal server error", "bad gateway", "service unavailable", "gateway timeout"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ExtractHostFromURL extracts the hostname from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "server"
	}
	return u.Host
}
