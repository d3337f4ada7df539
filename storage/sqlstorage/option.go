package sqlstorage

import (
	"go.uber.org/zap"
)

type options struct {
	logger     *zap.Logger
	sqlUrl     string
	tableName  string
	columns    []string // 列名，默认为col_1...col_n
	BatchCount int      // 批量插入的行数
}

var defaultOptions = options{
	logger:     zap.NewNop(),
	tableName:  "scrape_rows",
	BatchCount: 100,
}

type Option func(opts *options)

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

func WithSqlUrl(sqlUrl string) Option {
	return func(opts *options) {
		opts.sqlUrl = sqlUrl
	}
}

func WithTableName(name string) Option {
	return func(opts *options) {
		opts.tableName = name
	}
}

func WithColumns(columns ...string) Option {
	return func(opts *options) {
		opts.columns = columns
	}
}

func WithBatchCount(batchCount int) Option {
	return func(opts *options) {
		opts.BatchCount = batchCount
	}
}
