package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	errs "github.com/tvpsh2021/social-snap-sub001/pkg/errors"
	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
	"github.com/tvpsh2021/social-snap-sub001/pkg/urlutil"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"

var referers = map[models.Platform]string{
	models.PlatformThreads:   "https://www.threads.net/",
	models.PlatformInstagram: "https://www.instagram.com/",
	models.PlatformFacebook:  "https://www.facebook.com/",
}

// Referer returns the origin page CDNs expect for a platform's images
func Referer(p models.Platform) string {
	return referers[p]
}

// Client fetches image bytes from platform CDNs with browser-like headers
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	logger     logger.Logger
}

// NewClient creates a new HTTP client
func NewClient(timeout time.Duration, userAgent string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "image/avif,image/webp,image/apng,image/*,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
			"Sec-Fetch-Dest":  "image",
			"Sec-Fetch-Mode":  "no-cors",
			"Sec-Fetch-Site":  "cross-site",
		},
		logger: log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, classifyTransportError(req.Context(), err)
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, float64(duration.Microseconds())/1000)
	return resp, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errs.Wrap(errs.ErrorTypeCancelled, ctx.Err(), "request cancelled")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.Wrap(errs.ErrorTypeTimeout, err, "request timed out")
	}
	return errs.Wrap(errs.ErrorTypeNetwork, err, "network error")
}

// Get performs a GET request. A non-empty referer is sent as Referer.
func (c *Client) Get(ctx context.Context, rawURL, referer string) (*http.Response, error) {
	if _, err := urlutil.ParseHTTPURL(rawURL); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalidURL, err, "invalid download URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalidURL, err, "failed to create request")
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	return c.doRequest(req)
}

// Download streams the body of rawURL into w and returns the byte count
func (c *Client) Download(ctx context.Context, rawURL, referer string, w io.Writer) (int64, error) {
	resp, err := c.Get(ctx, rawURL, referer)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return 0, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		c.logger.ErrorWithFields("failed to read image data", map[string]interface{}{
			"url":   rawURL,
			"error": err.Error(),
		})
		if ctx.Err() != nil {
			return n, errs.Wrap(errs.ErrorTypeCancelled, ctx.Err(), "download cancelled")
		}
		return n, errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body")
	}

	c.logger.DebugWithFields("downloaded image", map[string]interface{}{
		"url":  rawURL,
		"size": n,
	})
	return n, nil
}

// checkResponseStatus maps a non-2xx response onto the error taxonomy
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	t := errs.ClassifyStatus(resp.StatusCode)
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
		"type":   string(t),
	}
	if errs.IsRetryable(t) {
		c.logger.WarnWithFields("transient HTTP error", fields)
	} else {
		c.logger.ErrorWithFields("HTTP error", fields)
	}

	return &errs.Error{
		Type:    t,
		Message: fmt.Sprintf("unexpected status %s", http.StatusText(resp.StatusCode)),
		Code:    resp.StatusCode,
	}
}
