package sentinel

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/dskow/resilience-core/internal/config"
)

// probeClient is shared by all HTTP probes. Per-probe deadlines come from the
// request context, not the client.
var probeClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	},
}

// defaultProbe dials tcp:// probes and GETs http:// and https:// probes.
// An HTTP status below 500 counts as answering; 5xx means the dependency is
// up but failing, which should trip the breaker like a refused connection.
func defaultProbe(ctx context.Context, dep config.DependencyConfig) error {
	u, err := url.Parse(dep.Probe)
	if err != nil {
		return fmt.Errorf("invalid probe url: %w", err)
	}

	switch u.Scheme {
	case "tcp":
		return probeTCP(ctx, u.Host)
	default:
		return probeHTTP(ctx, dep.Probe)
	}
}

func probeTCP(ctx context.Context, hostport string) error {
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", hostport)
	if err != nil {
		return err
	}
	return conn.Close()
}

func probeHTTP(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "sentineld-probe")

	resp, err := probeClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

	if resp.StatusCode >= 500 {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return nil
}
