package collect

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dszqbsm/scraper/extensions"
	"github.com/dszqbsm/scraper/limiter"
	"github.com/dszqbsm/scraper/proxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/time/rate"
)

const captchaPage = `<html><head><script src="https://www.google.com/recaptcha/api.js"></script></head><body>verify</body></html>`

func TestIsCaptcha(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{name: "recaptcha", content: captchaPage, want: true},
		{name: "in body", content: `<body><div><script src="https://www.google.com/recaptcha/api.js"></script></div></body>`, want: true},
		{name: "other script", content: `<script src="https://www.google.com/recaptcha/api.js?render=x"></script>`, want: false},
		{name: "no script", content: `<html><body><p>hello</p></body></html>`, want: false},
		{name: "malformed", content: `<html><body><table><tr><td>x</p></i>`, want: false},
		{name: "empty", content: ``, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCaptcha(tt.content))
		})
	}
}

func TestNormalizeLocation(t *testing.T) {
	assert.Equal(t, "http://example.com/a", NormalizeLocation("example.com/a"))
	assert.Equal(t, "https://example.com/a", NormalizeLocation("https://example.com/a"))
	assert.Equal(t, "file:///tmp/a.html", NormalizeLocation("file:///tmp/a.html"))
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "/", want: "index.html"},
		{in: "", want: "index.html"},
		{in: "/list/", want: filepath.Join("list", "index.html")},
		{in: "/list/page2.html", want: filepath.Join("list", "page2.html")},
		{in: "page1.html", want: "page1.html"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LocalPath(tt.in), tt.in)
	}
}

func TestFileFetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "list"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "list", "index.html"), []byte("index"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page1.html"), []byte("page one"), 0o644))

	f := &FileFetch{BaseDir: dir}
	ctx := context.Background()

	content, err := f.Fetch(ctx, "page1.html")
	require.NoError(t, err)
	assert.Equal(t, "page one", content)

	content, err = f.Fetch(ctx, "/list/")
	require.NoError(t, err)
	assert.Equal(t, "index", content)

	_, err = f.Fetch(ctx, "missing.html")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecodeBody(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().String("<p>阳台</p>")
	require.NoError(t, err)

	content, err := DecodeBody([]byte(gbk), "text/html; charset=gbk")
	require.NoError(t, err)
	assert.Equal(t, "<p>阳台</p>", content)

	content, err = DecodeBody([]byte("<p>阳台</p>"), "")
	require.NoError(t, err)
	assert.Equal(t, "<p>阳台</p>", content)
}

func TestNetworkFetchHeaders(t *testing.T) {
	var gotUA, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := NewNetworkFetch(
		WithUserAgents(extensions.NewUserAgentPool("scraper-test/1.0")),
		WithCookie("bid=1"),
	)
	content, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, content, "ok")
	assert.Equal(t, "scraper-test/1.0", gotUA)
	assert.Equal(t, "bid=1", gotCookie)
}

func TestNetworkFetchCaptchaExhausted(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(captchaPage))
	}))
	defer srv.Close()

	f := NewNetworkFetch()
	// 去掉协议头，验证错误中的地址补上了http://
	location := strings.TrimPrefix(srv.URL, "http://") + "/list"
	_, err := f.Fetch(context.Background(), location)

	var exhausted *FetchExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, srv.URL+"/list", exhausted.Location)
	assert.Equal(t, MaxRetry, exhausted.Attempts)
	assert.ErrorIs(t, err, ErrCaptcha)
	assert.Contains(t, err.Error(), srv.URL+"/list")
	assert.Equal(t, int32(MaxRetry), atomic.LoadInt32(&hits))
}

func TestNetworkFetchRecovers(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.Write([]byte(captchaPage))
		default:
			w.Write([]byte("<html><body>table</body></html>"))
		}
	}))
	defer srv.Close()

	content, err := NewNetworkFetch().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, content, "table")
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestNetworkFetchRotatesProxies(t *testing.T) {
	var first, second int32
	newProxy := func(counter *int32) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(counter, 1)
			w.Write([]byte(captchaPage))
		}))
	}
	p1, p2 := newProxy(&first), newProxy(&second)
	defer p1.Close()
	defer p2.Close()

	pool := proxy.NewPool(strings.TrimPrefix(p1.URL, "http://"), p2.URL)
	f := NewNetworkFetch(WithProxies(pool))
	_, err := f.Fetch(context.Background(), "http://example.invalid/list")

	var exhausted *FetchExhaustedError
	require.True(t, errors.As(err, &exhausted))
	// 5次尝试按p1,p2,p1,p2,p1轮换
	assert.Equal(t, int32(3), atomic.LoadInt32(&first))
	assert.Equal(t, int32(2), atomic.LoadInt32(&second))
}

func TestNetworkFetchEmptyPoolIsFatal(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	f := NewNetworkFetch(WithUserAgents(extensions.NewUserAgentPool()))
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, extensions.ErrEmptyPool)

	var exhausted *FetchExhaustedError
	assert.False(t, errors.As(err, &exhausted))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestNetworkFetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewNetworkFetch().Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

// head部分超过1024字节且全是ASCII，编码探测只能看到这一部分
func longHeadPage(body string) string {
	return "<html><head><title>list</title><style>" + strings.Repeat("p{margin:0}", 130) +
		"</style></head><body>" + body + "</body></html>"
}

func TestDecodeBodyUTF8AfterLongHead(t *testing.T) {
	page := longHeadPage("<p>阳台</p><p>café</p>")
	require.Greater(t, strings.Index(page, "阳台"), 1024)

	content, err := DecodeBody([]byte(page), "")
	require.NoError(t, err)
	assert.Equal(t, page, content)

	content, err = DecodeBody([]byte(page), "text/html")
	require.NoError(t, err)
	assert.Equal(t, page, content)
}

func TestDecodeBodyMetaCharset(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().String(`<meta charset="gbk"><p>阳台</p>`)
	require.NoError(t, err)

	content, err := DecodeBody([]byte(gbk), "")
	require.NoError(t, err)
	assert.Contains(t, content, "<p>阳台</p>")
}

func TestFileFetchEncoding(t *testing.T) {
	dir := t.TempDir()
	page := longHeadPage("<p>阳台</p><p>café</p>")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "long.html"), []byte(page), 0o644))
	// 已经转成utf-8保存的页面，<meta>仍然声明gbk
	saved := `<html><head><meta charset="gbk"></head><body><p>阳台</p></body></html>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "saved.html"), []byte(saved), 0o644))
	gbk, err := simplifiedchinese.GBK.NewEncoder().String(`<html><head><meta charset="gbk"></head><body><p>阳台</p></body></html>`)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gbk.html"), []byte(gbk), 0o644))

	f := &FileFetch{BaseDir: dir}
	tests := []struct {
		location string
		want     string
	}{
		{location: "long.html", want: "<p>阳台</p><p>café</p>"},
		{location: "saved.html", want: "<p>阳台</p>"},
		{location: "gbk.html", want: "<p>阳台</p>"},
	}
	for _, tt := range tests {
		content, err := f.Fetch(context.Background(), tt.location)
		require.NoError(t, err)
		assert.Contains(t, content, tt.want, tt.location)
	}
}

func TestNetworkFetchUTF8WithoutCharset(t *testing.T) {
	page := longHeadPage("<p>阳台</p><p>café</p>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	content, err := NewNetworkFetch().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, page, content)
}

func TestNetworkFetchDelayEachAttempt(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(captchaPage))
	}))
	defer srv.Close()

	d := 40 * time.Millisecond
	delay, err := limiter.NewRandomDelay(d, d)
	require.NoError(t, err)

	start := time.Now()
	_, err = NewNetworkFetch(WithDelay(delay)).Fetch(context.Background(), srv.URL)
	elapsed := time.Since(start)

	var exhausted *FetchExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, int32(MaxRetry), atomic.LoadInt32(&hits))
	// 每次尝试前休眠同样的时长；指数退避至少需要(1+2+4+8+16)d
	assert.GreaterOrEqual(t, elapsed, time.Duration(MaxRetry)*d)
	assert.Less(t, elapsed, 31*d)
}

type countingLimiter struct {
	waits int32
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	atomic.AddInt32(&l.waits, 1)
	return ctx.Err()
}

func (l *countingLimiter) Limit() rate.Limit {
	return rate.Inf
}

func TestNetworkFetchWaitsForLimit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.Write([]byte(captchaPage))
			return
		}
		w.Write([]byte("<html><body>table</body></html>"))
	}))
	defer srv.Close()

	l := &countingLimiter{}
	_, err := NewNetworkFetch(WithLimit(l)).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&l.waits))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestNetworkFetchLimitCancelled(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := &countingLimiter{}
	_, err := NewNetworkFetch(WithLimit(l)).Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), atomic.LoadInt32(&l.waits))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestNetworkFetchEmptyProxyPoolIsFatal(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	_, err := NewNetworkFetch(WithProxies(proxy.NewPool())).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, proxy.ErrEmptyPool)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

// 代理在transport上切换，不修改调用方传入的client的代理配置
func TestNetworkFetchProxyOnTransport(t *testing.T) {
	var hits int32
	p := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("<html><body>via proxy</body></html>"))
	}))
	defer p.Close()

	f := NewNetworkFetch(WithProxies(proxy.NewPool(p.URL)))
	assert.False(t, f.client.IsProxySet())

	content, err := f.Fetch(context.Background(), "http://example.invalid/list")
	require.NoError(t, err)
	assert.Contains(t, content, "via proxy")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
