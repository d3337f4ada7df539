package sqlstorage

// 把抓取到的行分批写入MySQL，第一次写入前按列数建表

import (
	"fmt"
	"io"

	"github.com/dszqbsm/scraper/parse"
	"github.com/dszqbsm/scraper/sqldb"
	"go.uber.org/zap"
)

type SqlStore struct {
	dataDocker  []parse.Row   // 等待插入的行
	columnNames []sqldb.Field // 表的列
	db          sqldb.DBer
	created     bool // 表是否已经创建
	options
}

func New(opts ...Option) (*SqlStore, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	db, err := sqldb.New(
		sqldb.WithConnURL(options.sqlUrl),
		sqldb.WithLogger(options.logger),
	)
	if err != nil {
		return nil, err
	}
	return newStore(db, options), nil
}

func newStore(db sqldb.DBer, options options) *SqlStore {
	if options.BatchCount <= 0 {
		options.BatchCount = 1
	}
	return &SqlStore{db: db, options: options}
}

/*
输入若干行，输出一个错误

第一次保存时根据行的列数建表，缓存的行数达到BatchCount时批量插入
*/
func (s *SqlStore) Save(rows ...parse.Row) error {
	for _, row := range rows {
		if !s.created {
			s.columnNames = s.fields(len(row))
			err := s.db.CreateTable(sqldb.TableData{
				TableName:   s.tableName,
				ColumnNames: s.columnNames,
				AutoKey:     true,
			})
			if err != nil {
				return fmt.Errorf("create table %s failed:%w", s.tableName, err)
			}
			s.created = true
		}
		if len(row) != len(s.columnNames) {
			return fmt.Errorf("row has %d values, table %s has %d columns", len(row), s.tableName, len(s.columnNames))
		}
		s.dataDocker = append(s.dataDocker, row)
		if len(s.dataDocker) >= s.BatchCount {
			if err := s.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// 插入缓存中的全部行，无论成功与否都会清空缓存
func (s *SqlStore) Flush() error {
	if len(s.dataDocker) == 0 {
		return nil
	}
	defer func() {
		s.dataDocker = nil
	}()

	args := make([]interface{}, 0, len(s.dataDocker)*len(s.columnNames))
	for _, row := range s.dataDocker {
		for _, v := range row {
			args = append(args, v)
		}
	}
	s.logger.Debug("flush rows", zap.String("table", s.tableName), zap.Int("count", len(s.dataDocker)))
	return s.db.Insert(sqldb.TableData{
		TableName:   s.tableName,
		ColumnNames: s.columnNames,
		Args:        args,
		DataCount:   len(s.dataDocker),
	})
}

// 优先使用配置的列名，不足的部分补col_i
func (s *SqlStore) fields(n int) []sqldb.Field {
	fields := make([]sqldb.Field, 0, n)
	for i := 0; i < n; i++ {
		title := fmt.Sprintf("col_%d", i+1)
		if i < len(s.columns) && s.columns[i] != "" {
			title = s.columns[i]
		}
		fields = append(fields, sqldb.Field{Title: title, Type: "MEDIUMTEXT"})
	}
	return fields
}

// 关闭底层连接，调用前应先Flush
func (s *SqlStore) Close() error {
	if c, ok := s.db.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
