package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/dszqbsm/scraper/config"
)

var ErrEmptyPool = errors.New("proxy pool is empty")

type ProxyFunc func(*http.Request) (*url.URL, error)

// 代理池：构造时把代理集合固定成一个循环序列，每次读取游标后移，游标永不重置
type Pool struct {
	endpoints []string
	index     uint32
}

/*
输入若干代理地址，输出一个代理池

去掉空行和重复地址，保留第一次出现的顺序作为循环顺序
*/
func NewPool(endpoints ...string) *Pool {
	seen := make(map[string]bool, len(endpoints))
	p := &Pool{}
	for _, e := range endpoints {
		e = strings.TrimSpace(e)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		p.endpoints = append(p.endpoints, e)
	}
	return p
}

// 从文件中按行读取代理地址，extra用于合并从免费代理网站获取的地址
func LoadPool(path string, extra ...string) (*Pool, error) {
	var endpoints []string
	if path != "" {
		lines, err := config.ReadLines(path)
		if err != nil {
			return nil, fmt.Errorf("load proxy file: %w", err)
		}
		endpoints = lines
	}
	return NewPool(append(endpoints, extra...)...), nil
}

// 按固定顺序返回下一个代理地址，到末尾后回到第一个
func (p *Pool) Get() (string, error) {
	if len(p.endpoints) == 0 {
		return "", ErrEmptyPool
	}
	index := atomic.AddUint32(&p.index, 1) - 1
	return p.endpoints[index%uint32(len(p.endpoints))], nil
}

/*
输出一个代理切换函数，可以设置为http.Transport的Proxy字段

每个请求都会从池中取下一个代理，与Get共用同一个游标
*/
func (p *Pool) ProxyFunc() ProxyFunc {
	return func(r *http.Request) (*url.URL, error) {
		endpoint, err := p.Get()
		if err != nil {
			return nil, err
		}
		return URL(endpoint)
	}
}

func (p *Pool) Len() int {
	return len(p.endpoints)
}

// 将代理地址转换为URL，没有协议头的地址(如 1.2.3.4:8080)按http代理处理
func URL(endpoint string) (*url.URL, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", endpoint, err)
	}
	return u, nil
}

// 打印代理时隐藏认证信息
func Redact(endpoint string) string {
	u, err := URL(endpoint)
	if err != nil || u.User == nil {
		return endpoint
	}
	return u.Redacted()
}
