package sqldb

import (
	"go.uber.org/zap"
)

type options struct {
	logger       *zap.Logger
	sqlUrl       string
	maxOpenConns int
}

var defaultOptions = options{
	logger:       zap.NewNop(),
	maxOpenConns: 4,
}

type Option func(opts *options)

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// 形如 root:123456@tcp(127.0.0.1:3306)/crawler?charset=utf8mb4
func WithConnURL(sqlURL string) Option {
	return func(opts *options) {
		opts.sqlUrl = sqlURL
	}
}

// 抓取是单线程顺序执行的，不需要很多连接
func WithMaxOpenConns(n int) Option {
	return func(opts *options) {
		opts.maxOpenConns = n
	}
}
