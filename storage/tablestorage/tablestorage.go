package tablestorage

import (
	"io"

	"github.com/dszqbsm/scraper/parse"
	"github.com/jedib0t/go-pretty/v6/table"
)

// 以对齐表格的形式输出到终端，行先缓存，Flush时统一渲染
type TableStore struct {
	t table.Writer
}

func New(w io.Writer, header ...string) *TableStore {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if len(header) > 0 {
		t.AppendHeader(toRow(header))
	}
	return &TableStore{t: t}
}

func (s *TableStore) Save(rows ...parse.Row) error {
	for _, row := range rows {
		s.t.AppendRow(toRow(row))
	}
	return nil
}

func (s *TableStore) Flush() error {
	s.t.Render()
	return nil
}

func toRow(values []string) table.Row {
	row := make(table.Row, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}
