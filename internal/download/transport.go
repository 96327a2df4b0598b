package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

/**
 * Response 传输层响应
 * @property {int} StatusCode - HTTP状态码
 * @property {http.Header} Header - 响应头
 * @property {io.ReadCloser} Body - 响应体，HEAD请求时为nil
 */
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// ContentLength parses the Content-Length header, returning -1 when absent or invalid.
func (r *Response) ContentLength() int64 {
	n, err := strconv.ParseInt(r.Header.Get("Content-Length"), 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// RangeStart parses the first byte position of a "bytes a-b/n" Content-Range, -1 when absent or invalid.
func (r *Response) RangeStart() int64 {
	v, ok := strings.CutPrefix(r.Header.Get("Content-Range"), "bytes ")
	if !ok {
		return -1
	}
	start, _, ok := strings.Cut(v, "-")
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSpace(start), 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// Transport performs the two requests the download engine needs.
type Transport interface {
	Head(ctx context.Context, url string) (*Response, error)
	// Get requests the resource from offset onwards; offset 0 requests the whole body.
	Get(ctx context.Context, url string, offset int64) (*Response, error)
}

/**
 * HTTPTransport 基于net/http的传输层实现
 * @property {*http.Client} Client - 底层HTTP客户端
 * @property {string} UserAgent - 请求头User-Agent
 * @property {time.Duration} HeadTimeout - HEAD请求超时，下载请求不设整体超时
 */
type HTTPTransport struct {
	Client      *http.Client
	UserAgent   string
	HeadTimeout time.Duration
}

func NewHTTPTransport(userAgent string, headTimeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		Client:      &http.Client{},
		UserAgent:   userAgent,
		HeadTimeout: headTimeout,
	}
}

func (t *HTTPTransport) Head(ctx context.Context, url string) (*Response, error) {
	if t.HeadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.HeadTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	t.setHeaders(req)
	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	header := resp.Header.Clone()
	// 响应头中没有Content-Length时，用解析出的长度补回
	if resp.ContentLength >= 0 && header.Get("Content-Length") == "" {
		header.Set("Content-Length", fmt.Sprint(resp.ContentLength))
	}
	return &Response{StatusCode: resp.StatusCode, Header: header}, nil
}

func (t *HTTPTransport) Get(ctx context.Context, url string, offset int64) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	t.setHeaders(req)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}

func (t *HTTPTransport) setHeaders(req *http.Request) {
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}
	req.Header.Set("Accept-Encoding", "identity")
}
