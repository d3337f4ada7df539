package collect

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// 获取页面内容的统一规范，有网络下载和本地文件读取两种实现
type Fetcher interface {
	/*
	   输入一个上下文和页面地址，输出页面内容和一个错误

	   网络实现会进行限速、随机延时、轮换User-Agent和代理，并在失败或遇到验证码时重试；本地实现直接读取文件
	*/
	Fetch(ctx context.Context, location string) (string, error)
}

const MaxRetry = 5

var (
	ErrNotFound = errors.New("page not found")
	ErrCaptcha  = errors.New("got captcha page")
)

// 重试次数耗尽，不会再被外层重试
type FetchExhaustedError struct {
	Location string
	Attempts int
	Err      error // 最后一次失败的原因
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("cannot download from %s after %d attempts: %v", e.Location, e.Attempts, e.Err)
}

func (e *FetchExhaustedError) Unwrap() error {
	return e.Err
}

// 地址中没有"://"时补上http协议头
func NormalizeLocation(location string) string {
	if !strings.Contains(location, "://") {
		return "http://" + location
	}
	return location
}

/*
输入url的path部分，输出相对本地目录的文件路径

以"/"结尾的路径补上index.html，去掉开头的"/"，再转换为操作系统的路径分隔符
*/
func LocalPath(p string) string {
	if p == "" || strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	p = strings.TrimPrefix(p, "/")
	return filepath.FromSlash(p)
}
