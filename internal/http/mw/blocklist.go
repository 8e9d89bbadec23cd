package mw

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/jmylchreest/genmedia-api/internal/config"
)

// IPBlocklist rejects requests from blocked addresses. The list is a JSON
// array of IPs and CIDR ranges kept in object storage. It is refreshed in
// the background and fails open while unavailable.
type IPBlocklist struct {
	loader *config.S3Loader
	logger *slog.Logger

	mu           sync.RWMutex
	blocked      map[string]bool
	blockedCIDRs []*net.IPNet
}

// NewIPBlocklist creates a blocklist backed by loader.
func NewIPBlocklist(loader *config.S3Loader, logger *slog.Logger) *IPBlocklist {
	if logger == nil {
		logger = slog.Default()
	}
	return &IPBlocklist{
		loader:  loader,
		logger:  logger.With("component", "blocklist"),
		blocked: make(map[string]bool),
	}
}

// Middleware returns the HTTP middleware handler.
func (b *IPBlocklist) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if b.loader == nil || !b.loader.IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			if b.loader.NeedsRefresh() {
				go b.Refresh(context.WithoutCancel(r.Context()))
			}

			clientIP := extractIP(r)
			if b.IsBlocked(clientIP) {
				b.logger.Warn("blocked request from blocklisted IP", "ip", clientIP, "path", r.URL.Path)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Refresh reloads the list if the stored object changed.
func (b *IPBlocklist) Refresh(ctx context.Context) {
	res, err := b.loader.Fetch(ctx)
	if err != nil {
		b.logger.Error("failed to fetch blocklist", "error", err)
		return
	}
	if res == nil || res.NotChanged {
		return
	}

	var entries []string
	if err := json.Unmarshal(res.Data, &entries); err != nil {
		b.logger.Error("failed to parse blocklist JSON", "error", err)
		return
	}
	b.load(entries)
}

func (b *IPBlocklist) load(entries []string) {
	blocked := make(map[string]bool)
	var cidrs []*net.IPNet

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				b.logger.Warn("invalid CIDR in blocklist", "entry", entry, "error", err)
				continue
			}
			cidrs = append(cidrs, ipNet)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			blocked[ip.String()] = true
		} else {
			b.logger.Warn("invalid IP in blocklist", "entry", entry)
		}
	}

	b.mu.Lock()
	b.blocked = blocked
	b.blockedCIDRs = cidrs
	b.mu.Unlock()

	b.logger.Info("blocklist refreshed", "exact_ips", len(blocked), "cidr_ranges", len(cidrs))
}

// IsBlocked checks if an IP is in the blocklist.
func (b *IPBlocklist) IsBlocked(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.blocked[ip.String()] {
		return true
	}
	for _, cidr := range b.blockedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// extractIP gets the client IP from the request. Assumes chi's RealIP ran first.
func extractIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
