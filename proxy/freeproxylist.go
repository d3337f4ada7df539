package proxy

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const FreeProxyListURL = "https://free-proxy-list.net/"

const (
	freeProxyMaxRows  = 50
	freeProxyMaxCells = 7
)

/*
输入一个上下文和http客户端，输出支持https的代理地址列表

抓取free-proxy-list.net的代理表格，依赖该网站的页面结构，网站改版后可能失效
*/
func FreeProxyList(ctx context.Context, client *resty.Client) ([]string, error) {
	if client == nil {
		client = resty.New()
	}
	resp, err := client.R().SetContext(ctx).Get(FreeProxyListURL)
	if err != nil {
		return nil, fmt.Errorf("get free proxy list failed:%w", err)
	}
	return ParseFreeProxyList(resp.Body())
}

/*
输入代理列表页面内容，输出可用的代理地址

只解析前50行，每行最多读取7列，第7列为"yes"(支持https)的行才可用，前两列组合为host:port
*/
func ParseFreeProxyList(content []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse free proxy list failed:%w", err)
	}

	seen := make(map[string]bool)
	var proxies []string
	doc.Find("tbody tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i == freeProxyMaxRows {
			return false
		}
		cells := row.ChildrenFiltered("td")
		if cells.Length() < freeProxyMaxCells {
			return true
		}
		if cells.Eq(6).Text() != "yes" {
			return true
		}
		endpoint := cells.Eq(0).Text() + ":" + cells.Eq(1).Text()
		if !seen[endpoint] {
			seen[endpoint] = true
			proxies = append(proxies, endpoint)
		}
		return true
	})
	return proxies, nil
}
