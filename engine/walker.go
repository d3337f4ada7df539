package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"os"
	"path/filepath"

	"github.com/antchfx/xpath"
	"github.com/dszqbsm/scraper/collect"
	"github.com/dszqbsm/scraper/parse"
	"go.uber.org/zap"
)

// 分页抓取器：沿着"下一页"链接依次抓取页面，把每页提取出的行拼成一张表。
// 不做环路检测，下一页指回之前页面时只能依靠MaxPage终止
type Walker struct {
	columns  []*xpath.Expr
	nextPage *xpath.Expr
	options
}

/*
输入若干配置选项，输出一个分页抓取器

所有选择器在这里编译，非法的选择器直接返回错误
*/
func NewWalker(opts ...Option) (*Walker, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.Fetcher == nil {
		return nil, errors.New("walker needs a fetcher")
	}
	if len(options.Columns) == 0 {
		return nil, errors.New("walker needs at least one column xpath")
	}
	if options.MaxPage < 0 {
		return nil, fmt.Errorf("invalid max page %d", options.MaxPage)
	}

	w := &Walker{options: options}
	columns, err := parse.Compile(options.Columns...)
	if err != nil {
		return nil, err
	}
	w.columns = columns
	if options.NextPage != "" {
		next, err := parse.Compile(options.NextPage)
		if err != nil {
			return nil, err
		}
		w.nextPage = next[0]
	}
	return w, nil
}

/*
输入起始地址和行回调，输出一个错误

循环执行：获取页面 -> 保存原始页面 -> 提取并逐行回调 -> 判断是否到达最大页数 -> 查找下一页链接。
回调返回错误时立即停止。下一页链接相对于当前地址解析，网络来源的起始地址缺少协议时补上http://
*/
func (w *Walker) Walk(ctx context.Context, location string, emit func(parse.Row) error) error {
	if _, ok := w.Fetcher.(*collect.NetworkFetch); ok {
		location = collect.NormalizeLocation(location)
	}
	for pageIndex := 0; ; pageIndex++ {
		w.Logger.Info("scrape page", zap.Int("page", pageIndex+1), zap.String("url", location))

		content, err := w.Fetcher.Fetch(ctx, location)
		if err != nil {
			return err
		}
		if w.SaveDir != "" {
			if err := SavePage(w.SaveDir, location, content); err != nil {
				return err
			}
		}

		page, err := parse.ParsePage(content)
		if err != nil {
			return err
		}
		table, err := page.Extract(w.columns)
		if err != nil {
			return err
		}
		w.Logger.Debug("extract rows", zap.String("url", location), zap.Int("count", len(table)))
		for _, row := range table {
			if err := emit(row); err != nil {
				return err
			}
		}

		if w.MaxPage > 0 && pageIndex+1 == w.MaxPage {
			w.Logger.Debug("max page reached", zap.Int("max", w.MaxPage))
			return nil
		}
		if w.nextPage == nil {
			return nil
		}
		href, ok, err := page.Href(w.nextPage)
		if err != nil {
			return err
		}
		if !ok {
			w.Logger.Debug("no next page", zap.String("url", location))
			return nil
		}
		next, err := resolve(location, href)
		if err != nil {
			return err
		}
		location = next
	}
}

// 惰性序列，每次遍历都从起始地址重新抓取；出错时产出一次错误后结束
func (w *Walker) Rows(ctx context.Context, location string) iter.Seq2[parse.Row, error] {
	return func(yield func(parse.Row, error) bool) {
		err := w.Walk(ctx, location, func(row parse.Row) error {
			if !yield(row, nil) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(nil, err)
		}
	}
}

var errStop = errors.New("stop walking")

// 以当前页面地址为基准解析下一页链接
func resolve(location, href string) (string, error) {
	base, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid page url %q: %w", location, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid next page link %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

/*
输入保存目录和页面地址，输出本地文件路径

路径由url的path部分决定，目录层级与url一致，例如 http://a.com/list/ -> <dir>/list/index.html
*/
func SavePath(dir, location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid page url %q: %w", location, err)
	}
	return filepath.Join(dir, collect.LocalPath(u.Path)), nil
}

// 保存原始页面，写入失败时也会关闭文件
func SavePage(dir, location, content string) (err error) {
	path, err := SavePath(dir, location)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create save dir failed:%w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save page failed:%w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("save page failed:%w", cerr)
		}
	}()
	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("save page failed:%w", err)
	}
	return nil
}
