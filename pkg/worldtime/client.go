// Package worldtime fetches a reference wall-clock time from a
// worldtimeapi.org compatible service.
package worldtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/ssargent/sysconf/pkg/logging"
)

const (
	// DefaultBaseURL is the public time service
	DefaultBaseURL = "http://worldtimeapi.org"
	ipPath         = "/api/ip"
	userAgent      = "sysconf"
	maxBodySize    = 64 * 1024
)

// Response is the subset of the time service reply that is used
type Response struct {
	UnixTime     *int64 `json:"unixtime"`
	UTCOffset    string `json:"utc_offset"`
	Abbreviation string `json:"abbreviation,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	Datetime     string `json:"datetime,omitempty"`
}

// Corrected returns the service's unix time shifted into its local zone
func (r *Response) Corrected() (uint64, error) {
	if r.UnixTime == nil {
		return 0, fmt.Errorf("response missing unixtime")
	}

	offset, err := ParseUTCOffset(r.UTCOffset)
	if err != nil {
		return 0, err
	}

	return uint64(*r.UnixTime + offset), nil
}

// MaxUTCOffsetHours bounds the hour field of a UTC offset. Real zones span
// -12:00 to +14:00.
const MaxUTCOffsetHours = 14

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// ParseUTCOffset parses "+HH:MM" or "-HH:MM" into seconds
func ParseUTCOffset(s string) (int64, error) {
	if len(s) != 6 || s[3] != ':' || (s[0] != '+' && s[0] != '-') {
		return 0, fmt.Errorf("invalid utc_offset %q", s)
	}
	for _, i := range []int{1, 2, 4, 5} {
		if !isDigit(s[i]) {
			return 0, fmt.Errorf("invalid utc_offset %q: non-digit at %d", s, i)
		}
	}

	hours := int(s[1]-'0')*10 + int(s[2]-'0')
	minutes := int(s[4]-'0')*10 + int(s[5]-'0')
	if hours > MaxUTCOffsetHours {
		return 0, fmt.Errorf("invalid utc_offset %q: hours out of range", s)
	}
	if minutes >= 60 {
		return 0, fmt.Errorf("invalid utc_offset %q: minutes out of range", s)
	}

	secs := int64(hours*3600 + minutes*60)
	if s[0] == '-' {
		secs = -secs
	}
	return secs, nil
}

// Client talks to the time service
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
	logger     *log.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithClock overrides the local clock used by Delta
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(cl *Client) { cl.logger = logging.OrDiscard(l) }
}

// NewClient creates a client for baseURL with the given request timeout
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch requests the current time for the caller's IP
func (c *Client) Fetch(ctx context.Context) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+ipPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("time service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("time service returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read time service response: %w", err)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("invalid date and time JSON: %w", err)
	}
	if out.UnixTime == nil || out.UTCOffset == "" {
		return nil, fmt.Errorf("invalid date and time JSON: unixtime and utc_offset are required")
	}

	if out.Abbreviation != "" && out.Timezone != "" {
		c.logger.Info().Str("timezone", out.Timezone).Str("abbreviation", out.Abbreviation).Msg("time service zone")
	}
	if out.Datetime != "" {
		c.logger.Info().Str("datetime", out.Datetime).Msg("time service date and time")
	}

	return &out, nil
}

// Delta returns the corrected reference time minus the local clock, in
// seconds. The local clock is read after the response arrives.
func (c *Client) Delta(ctx context.Context) (int64, error) {
	resp, err := c.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	local := c.now().Unix()

	corrected, err := resp.Corrected()
	if err != nil {
		return 0, err
	}

	return int64(corrected) - local, nil
}
