package csvstorage

import (
	"encoding/csv"
	"io"

	"github.com/dszqbsm/scraper/parse"
)

type options struct {
	header []string
}

type Option func(opts *options)

// 在第一行写出表头，一般使用列选择器作为表头
func WithHeader(labels ...string) Option {
	return func(opts *options) {
		opts.header = labels
	}
}

// 按CSV格式逐行写出，表头可选
type CsvStore struct {
	w           *csv.Writer
	wroteHeader bool
	options
}

func New(w io.Writer, opts ...Option) *CsvStore {
	var options options
	for _, opt := range opts {
		opt(&options)
	}
	return &CsvStore{w: csv.NewWriter(w), options: options}
}

func (s *CsvStore) Save(rows ...parse.Row) error {
	if err := s.writeHeader(); err != nil {
		return err
	}
	for _, row := range rows {
		if err := s.w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// 没有任何数据时也会写出表头
func (s *CsvStore) Flush() error {
	if err := s.writeHeader(); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CsvStore) writeHeader() error {
	if s.wroteHeader || len(s.header) == 0 {
		return nil
	}
	s.wroteHeader = true
	return s.w.Write(s.header)
}
