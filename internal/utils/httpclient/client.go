package httpclient

import (
	"compress/gzip"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"PickSync/internal/config"

	"github.com/sirupsen/logrus"
)

const defaultTimeout = 30 * time.Second

// Client 通用HTTP客户端（代理、超时、自动解压、429/5xx退避重试）
type Client struct {
	http       *http.Client
	maxRetries int
	logger     *logrus.Logger
}

// New 按数据源配置构建客户端
func New(cfg *config.SourceConfig, logger *logrus.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  false,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	// 配置代理
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			logger.WithError(err).WithField("proxy", cfg.Proxy).Warn("代理地址解析失败，将不使用代理")
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
			logger.WithField("proxy", cfg.Proxy).Info("HTTP客户端已配置代理")
		}
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: &compressedTransport{transport: transport, logger: logger},
		},
		maxRetries: cfg.RetryCount,
		logger:     logger,
	}
}

// Do 单次请求，不重试
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// DoWithRetry 网络错误与 429/5xx 按指数退避重试，优先遵循 Retry-After。
// 仅用于无请求体的 GET，重试时克隆请求。
func (c *Client) DoWithRetry(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff(attempt)):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
		}

		resp, err := c.http.Do(req.Clone(req.Context()))
		if err != nil {
			lastErr = err
			c.logger.WithError(err).WithField("attempt", attempt).Warn("HTTP请求失败，准备重试")
			continue
		}
		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		// 429/5xx：丢弃响应体后重试；有 Retry-After 则额外等待
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = &statusError{code: resp.StatusCode}
		c.logger.WithField("status", resp.StatusCode).WithField("attempt", attempt).Warn("上游限流或服务端错误，准备重试")
		if retryAfter > 0 {
			select {
			case <-time.After(retryAfter):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
		}
	}
	return nil, lastErr
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// backoff 指数退避加 0~250ms 抖动：1s、2s、4s...
func backoff(attempt int) time.Duration {
	base := time.Second << (attempt - 1)
	if base > 16*time.Second {
		base = 16 * time.Second
	}
	return base + time.Duration(rand.Intn(250))*time.Millisecond
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("上游返回状态码 %d", e.code)
}

type compressedTransport struct {
	transport http.RoundTripper
	logger    *logrus.Logger
}

func (c *compressedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Add("Accept-Encoding", "gzip")
	resp, err := c.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// 处理gzip解压
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			c.logger.WithError(err).Warn("gzip解压失败，返回原始响应")
			return resp, nil
		}
		resp.Body = &gzipReadCloser{
			Reader: gzReader,
			closer: resp.Body,
		}
		resp.Header.Del("Content-Encoding")
	}

	return resp, nil
}

// gzipReadCloser 包装io.ReadCloser，Close 时先关解压 reader 再关原始响应体
type gzipReadCloser struct {
	*gzip.Reader
	closer io.ReadCloser
}

func (g *gzipReadCloser) Close() error {
	if err := g.Reader.Close(); err != nil {
		return err
	}
	return g.closer.Close()
}
