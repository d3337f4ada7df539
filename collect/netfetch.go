package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dszqbsm/scraper/extensions"
	"github.com/dszqbsm/scraper/limiter"
	"github.com/dszqbsm/scraper/proxy"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type resultKind int

const (
	resultOK resultKind = iota
	resultTransient
	resultFatal
)

// 单次下载的结果：成功、可重试的临时失败、不可重试的致命失败
type fetchResult struct {
	kind    resultKind
	content string
	err     error
}

func okResult(content string) fetchResult {
	return fetchResult{kind: resultOK, content: content}
}

func transientResult(err error) fetchResult {
	return fetchResult{kind: resultTransient, err: err}
}

func fatalResult(err error) fetchResult {
	return fetchResult{kind: resultFatal, err: err}
}

type options struct {
	logger     *zap.Logger
	client     *resty.Client
	timeout    time.Duration
	cookie     string
	userAgents *extensions.UserAgentPool
	proxies    *proxy.Pool
	delay      *limiter.RandomDelay
	limit      limiter.RateLimiter
}

var defaultOptions = options{
	logger:  zap.NewNop(),
	timeout: 30 * time.Second,
}

type Option func(opts *options)

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

func WithClient(client *resty.Client) Option {
	return func(opts *options) {
		opts.client = client
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(opts *options) {
		opts.timeout = timeout
	}
}

func WithCookie(cookie string) Option {
	return func(opts *options) {
		opts.cookie = cookie
	}
}

func WithUserAgents(pool *extensions.UserAgentPool) Option {
	return func(opts *options) {
		opts.userAgents = pool
	}
}

func WithProxies(pool *proxy.Pool) Option {
	return func(opts *options) {
		opts.proxies = pool
	}
}

func WithDelay(delay *limiter.RandomDelay) Option {
	return func(opts *options) {
		opts.delay = delay
	}
}

func WithLimit(limit limiter.RateLimiter) Option {
	return func(opts *options) {
		opts.limit = limit
	}
}

// 网络下载器，模拟人类行为：限速、随机休眠、轮换User-Agent和代理，遇到网络错误或验证码时重试
type NetworkFetch struct {
	options
}

func NewNetworkFetch(opts ...Option) *NetworkFetch {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.client == nil {
		options.client = resty.New()
	}
	options.client.SetTimeout(options.timeout)
	options.client.SetLogger(options.logger.Sugar())

	f := &NetworkFetch{options: options}
	if f.proxies != nil {
		// 代理在transport上按请求切换，不修改client的共享配置
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = f.proxyFunc(f.proxies.ProxyFunc())
		f.client.SetTransport(transport)
	}
	return f
}

// 记录每次请求实际使用的代理
func (f *NetworkFetch) proxyFunc(next proxy.ProxyFunc) proxy.ProxyFunc {
	return func(r *http.Request) (*url.URL, error) {
		u, err := next(r)
		if err != nil {
			return nil, err
		}
		f.logger.Debug("proxy", zap.String("proxy", u.Redacted()))
		return u, nil
	}
}

/*
输入一个上下文和页面地址，输出页面内容和一个错误

最多尝试MaxRetry次，每次尝试前都按相同的随机区间休眠，不做指数退避；
临时失败只记录日志并消耗一次机会，致命失败立即返回，次数耗尽后返回FetchExhaustedError
*/
func (f *NetworkFetch) Fetch(ctx context.Context, location string) (string, error) {
	location = NormalizeLocation(location)
	if _, err := url.ParseRequestURI(location); err != nil {
		return "", fmt.Errorf("invalid location %q: %w", location, err)
	}

	var last error
	for attempt := 1; attempt <= MaxRetry; attempt++ {
		res := f.attempt(ctx, location)
		switch res.kind {
		case resultOK:
			return res.content, nil
		case resultFatal:
			return "", res.err
		}
		last = res.err
		f.logger.Warn("fetch failed",
			zap.String("url", location),
			zap.Int("attempt", attempt),
			zap.Error(res.err),
		)
		f.logger.Debug("retry left", zap.Int("left", MaxRetry-attempt))
	}
	return "", &FetchExhaustedError{Location: location, Attempts: MaxRetry, Err: last}
}

func (f *NetworkFetch) attempt(ctx context.Context, location string) fetchResult {
	if f.limit != nil {
		if err := f.limit.Wait(ctx); err != nil {
			return fatalResult(err)
		}
	}
	if f.delay != nil {
		if err := f.delay.Sleep(ctx); err != nil {
			return fatalResult(err)
		}
	}

	f.logger.Debug("downloading", zap.String("url", location))

	req := f.client.R().SetContext(ctx)
	if f.userAgents != nil {
		ua, err := f.userAgents.Get()
		if err != nil {
			return fatalResult(err)
		}
		f.logger.Debug("user agent", zap.String("ua", ua))
		req.SetHeader("User-Agent", ua)
	}
	if len(f.cookie) > 0 {
		req.SetHeader("Cookie", f.cookie)
	}
	if f.proxies != nil && f.proxies.Len() == 0 {
		return fatalResult(proxy.ErrEmptyPool)
	}

	resp, err := req.Get(location)
	if err != nil {
		if ctx.Err() != nil {
			return fatalResult(ctx.Err())
		}
		return transientResult(err)
	}
	if code := resp.StatusCode(); code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
		return transientResult(fmt.Errorf("error status code:%d", code))
	}

	content, err := DecodeBody(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return transientResult(err)
	}
	if IsCaptcha(content) {
		return transientResult(ErrCaptcha)
	}
	return okResult(content)
}
