// Package ipchecker restricts service endpoints such as /metrics to clients
// from trusted subnets.
package ipchecker

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/signup/internal/logger"
)

// IPChecker matches client addresses against a list of CIDR subnets.
// With no subnets configured every client is allowed.
type IPChecker struct {
	trustedSubnets []*net.IPNet
}

// New parses the subnets in CIDR notation (e.g. "10.0.0.0/8"). Empty strings are skipped.
func New(trustedSubnets ...string) (*IPChecker, error) {
	checker := &IPChecker{}
	for _, subnet := range trustedSubnets {
		subnet = strings.TrimSpace(subnet)
		if subnet == "" {
			continue
		}
		_, allowedNet, err := net.ParseCIDR(subnet)
		if err != nil {
			return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/New(): error while `net.ParseCIDR()` calling: %w", err)
		}
		checker.trustedSubnets = append(checker.trustedSubnets, allowedNet)
	}
	return checker, nil
}

func (checker *IPChecker) Open() bool {
	return len(checker.trustedSubnets) == 0
}

// Check reports whether clientIP belongs to one of the trusted subnets.
func (checker *IPChecker) Check(clientIP net.IP) bool {
	if clientIP == nil {
		return false
	}
	for _, subnet := range checker.trustedSubnets {
		if subnet.Contains(clientIP) {
			return true
		}
	}
	return false
}

// ClientIP extracts the client address, checking in order the X-Real-IP header,
// the first X-Forwarded-For entry and RemoteAddr.
func ClientIP(request *http.Request) (net.IP, error) {
	if ip := net.ParseIP(request.Header.Get("X-Real-IP")); ip != nil {
		return ip, nil
	}
	if xff := request.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip, nil
		}
	}
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/ClientIP(): error while `net.SplitHostPort()` calling: %w", err)
	}
	return net.ParseIP(host), nil
}

// TrustedOnly answers 403 to clients outside the trusted subnets.
func (checker *IPChecker) TrustedOnly(h http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		if checker.Open() {
			h.ServeHTTP(response, request)
			return
		}

		clientIP, err := ClientIP(request)
		if err != nil {
			logger.Log.Debugln("Error calling the `ClientIP()`: ", zap.Error(err))
		}
		if !checker.Check(clientIP) {
			response.WriteHeader(http.StatusForbidden)
			return
		}

		h.ServeHTTP(response, request)
	})
}
