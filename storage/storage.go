package storage

import (
	"errors"
	"iter"

	"github.com/dszqbsm/scraper/parse"
)

// 存储引擎的统一规范：Save接收按顺序产出的行，Flush把缓存的数据写出
type Storage interface {
	Save(rows ...parse.Row) error
	Flush() error
}

/*
输入一个行序列和存储引擎，输出写入的行数和一个错误

序列产出错误时停止，已写入的行仍会被Flush，输出不会被标记为不完整
*/
func Drain(rows iter.Seq2[parse.Row, error], s Storage) (int, error) {
	var count int
	for row, err := range rows {
		if err != nil {
			return count, errors.Join(err, s.Flush())
		}
		if err := s.Save(row); err != nil {
			return count, err
		}
		count++
	}
	return count, s.Flush()
}
