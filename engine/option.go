package engine

import (
	"github.com/dszqbsm/scraper/collect"
	"go.uber.org/zap"
)

type Option func(opts *options)

// 分页抓取配置选项
type options struct {
	Fetcher  collect.Fetcher // 页面来源
	Columns  []string        // 列选择器，每个xpath对应一列
	NextPage string          // 下一页链接的选择器，为空时只抓取一页
	MaxPage  int             // 最多抓取的页数，0表示不限制
	SaveDir  string          // 保存原始页面的目录，为空时不保存
	Logger   *zap.Logger
}

var defaultOptions = options{
	Logger: zap.NewNop(),
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.Logger = logger
	}
}

func WithFetcher(fetcher collect.Fetcher) Option {
	return func(opts *options) {
		opts.Fetcher = fetcher
	}
}

func WithColumns(columns ...string) Option {
	return func(opts *options) {
		opts.Columns = columns
	}
}

func WithNextPage(nextPage string) Option {
	return func(opts *options) {
		opts.NextPage = nextPage
	}
}

func WithMaxPage(maxPage int) Option {
	return func(opts *options) {
		opts.MaxPage = maxPage
	}
}

func WithSaveDir(dir string) Option {
	return func(opts *options) {
		opts.SaveDir = dir
	}
}
