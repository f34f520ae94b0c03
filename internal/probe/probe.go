package probe

import (
	"context"
	"io"
	"log"
	"math"
	"net/http"
	"os/exec"
	"strconv"
	"time"
)

// Prober performs one reachability check of the monitored device.
// Implementations never return an error: any transport failure, timeout
// or refused connection reads as unreachable.
type Prober interface {
	Probe(ctx context.Context) bool
}

// HTTPProber issues a GET against a device health URL. Any response with
// a status below 500 counts as reachable; the device answering at all is
// the signal, not the endpoint being happy.
type HTTPProber struct {
	url     string
	timeout time.Duration
	client  *http.Client
	logger  *log.Logger
}

// Dependencies allow test overrides for the HTTP client and logging.
type Dependencies struct {
	HTTPClient *http.Client
	Logger     *log.Logger
}

func NewHTTPProber(url string, timeout time.Duration, deps Dependencies) *HTTPProber {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &HTTPProber{
		url:     url,
		timeout: timeout,
		client:  client,
		logger:  logger,
	}
}

func (p *HTTPProber) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		p.logger.Printf("probe request build failed: %v", err)
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode < http.StatusInternalServerError
}

// PingProber shells out to the system ping binary, one echo request per
// probe. Used when the device exposes no HTTP surface.
type PingProber struct {
	host    string
	timeout time.Duration
	logger  *log.Logger
}

func NewPingProber(host string, timeout time.Duration, deps Dependencies) *PingProber {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &PingProber{
		host:    host,
		timeout: timeout,
		logger:  logger,
	}
}

func (p *PingProber) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout+time.Second)
	defer cancel()

	// ping takes whole seconds; round the deadline up so sub-second
	// configs still bound the wait.
	waitSec := int(math.Ceil(p.timeout.Seconds()))
	if waitSec < 1 {
		waitSec = 1
	}

	cmd := exec.CommandContext(ctx, "ping", "-c", "1", "-W", strconv.Itoa(waitSec), p.host)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run() == nil
}

// Func adapts a plain function to the Prober interface.
type Func func(ctx context.Context) bool

func (f Func) Probe(ctx context.Context) bool {
	return f(ctx)
}
