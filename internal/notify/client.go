package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/snapwatchhq/watcher/internal/events"
	"github.com/snapwatchhq/watcher/internal/metrics"
)

const defaultSendTimeout = 8 * time.Second

// Template describes one rendered notification: optional header fields
// plus a message body with {placeholder} substitution.
type Template struct {
	Title    string
	Priority int
	Tags     []string
	Message  string
}

// Config holds the static configuration for a notification client.
type Config struct {
	Server    string
	Topic     string
	Defaults  Template
	Templates map[string]Template
	Vars      map[string]string
}

// Dependencies allow test overrides for HTTP client, clock, rate limit
// and logging.
type Dependencies struct {
	HTTPClient *http.Client
	Logger     *log.Logger
	Now        func() time.Time
	Limiter    *rate.Limiter
	Metrics    *metrics.Store
}

// Client posts rendered event notifications to an ntfy-compatible topic.
type Client struct {
	httpClient *http.Client
	topicURL   string
	defaults   Template
	templates  map[string]Template
	vars       map[string]string
	logger     *log.Logger
	now        func() time.Time
	limiter    *rate.Limiter
	metrics    *metrics.Store
}

// NewClient builds a notification client from configuration and dependencies.
func NewClient(cfg Config, deps Dependencies) (*Client, error) {
	if strings.TrimSpace(cfg.Server) == "" {
		return nil, fmt.Errorf("notification server is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("notification topic is required")
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultSendTimeout}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	templates := make(map[string]Template, len(cfg.Templates))
	for name, tpl := range cfg.Templates {
		templates[name] = tpl
	}

	return &Client{
		httpClient: httpClient,
		topicURL:   joinTopicURL(cfg.Server, cfg.Topic),
		defaults:   cfg.Defaults,
		templates:  templates,
		vars:       cloneVars(cfg.Vars),
		logger:     logger,
		now:        now,
		limiter:    deps.Limiter,
		metrics:    deps.Metrics,
	}, nil
}

// Emit renders and delivers one event. Delivery failures are logged and
// counted, never returned; the caller's loop must not stall on the sink.
func (c *Client) Emit(ctx context.Context, event events.Event) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.logger.Printf("notify(%s) dropped: rate limit", event.Type)
		if c.metrics != nil {
			c.metrics.IncNotifyLimited()
		}
		return
	}

	err := c.send(ctx, event)
	if c.metrics != nil {
		c.metrics.ObserveNotify(err)
	}
	if err != nil {
		c.logger.Printf("notify(%s) failed: %v", event.Type, err)
		return
	}
	c.logger.Printf("notify(%s) sent", event.Type)
}

func (c *Client) send(ctx context.Context, event events.Event) error {
	tpl, ok := c.templates[string(event.Type)]
	if !ok {
		return fmt.Errorf("no template for event %q", event.Type)
	}
	tpl = mergeDefaults(c.defaults, tpl)

	message := renderMessage(tpl.Message, c.renderVars(event))

	ctx, cancel := context.WithTimeout(ctx, defaultSendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.topicURL, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build notify request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if tpl.Title != "" {
		req.Header.Set("Title", tpl.Title)
	}
	if tpl.Priority != 0 {
		req.Header.Set("Priority", strconv.Itoa(tpl.Priority))
	}
	if len(tpl.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(tpl.Tags, ","))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification rejected: status %s", resp.Status)
	}
	return nil
}

func (c *Client) renderVars(event events.Event) map[string]string {
	vars := cloneVars(c.vars)
	for key, value := range event.Details {
		switch v := value.(type) {
		case []string:
			vars[key] = strings.Join(v, ", ")
		default:
			vars[key] = fmt.Sprint(v)
		}
	}
	if event.RunID != "" {
		vars["run_id"] = event.RunID
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}
	vars["ts"] = ts.UTC().Format(time.RFC3339)
	return vars
}

func mergeDefaults(defaults, tpl Template) Template {
	if tpl.Title == "" {
		tpl.Title = defaults.Title
	}
	if tpl.Priority == 0 {
		tpl.Priority = defaults.Priority
	}
	if len(tpl.Tags) == 0 {
		tpl.Tags = defaults.Tags
	}
	if tpl.Message == "" {
		tpl.Message = defaults.Message
	}
	return tpl
}

// renderMessage substitutes {name} placeholders. Unknown placeholders
// are left in place so a template typo is visible in the delivered text.
func renderMessage(message string, vars map[string]string) string {
	if len(vars) == 0 {
		return message
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		pairs = append(pairs, "{"+key+"}", vars[key])
	}
	return strings.NewReplacer(pairs...).Replace(message)
}

func cloneVars(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func joinTopicURL(server, topic string) string {
	server = strings.TrimRight(server, "/")
	topic = strings.Trim(strings.TrimSpace(topic), "/")
	return server + "/" + topic
}

var _ events.Emitter = (*Client)(nil)
