package sqldb

// 与MySQL交互：建表、批量插入

import (
	"database/sql"
	"errors"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

type DBer interface {
	CreateTable(t TableData) error
	Insert(t TableData) error
}

type Sqldb struct {
	options
	db *sql.DB
}

// 创建实例并打开连接
func New(opts ...Option) (*Sqldb, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	d := &Sqldb{}
	d.options = options
	if err := d.OpenDB(); err != nil {
		return nil, err
	}
	return d, nil
}

// 打开连接并通过ping检查连接是否可用
func (d *Sqldb) OpenDB() error {
	db, err := sql.Open("mysql", d.sqlUrl)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(d.maxOpenConns)
	db.SetMaxIdleConns(d.maxOpenConns)
	if err = db.Ping(); err != nil {
		db.Close()
		return err
	}
	d.db = db
	return nil
}

func (d *Sqldb) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

/*
输入表结构，输出一个错误

表不存在时创建，列名使用反引号包裹，字符集为utf8mb4
*/
func (d *Sqldb) CreateTable(t TableData) error {
	sql, err := CreateTableSQL(t)
	if err != nil {
		return err
	}
	d.logger.Debug("create table", zap.String("sql", sql))
	_, err = d.db.Exec(sql)
	return err
}

/*
输入表数据，输出一个错误

一条语句插入多行，形如INSERT INTO t(a,b) VALUES (?,?),(?,?);
*/
func (d *Sqldb) Insert(t TableData) error {
	sql, err := InsertSQL(t)
	if err != nil {
		return err
	}
	d.logger.Debug("insert table", zap.String("sql", sql), zap.Int("count", t.DataCount))
	_, err = d.db.Exec(sql, t.Args...)
	return err
}

func CreateTableSQL(t TableData) (string, error) {
	if len(t.ColumnNames) == 0 {
		return "", errors.New("column can not be empty")
	}
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS " + quote(t.TableName) + " (")
	if t.AutoKey {
		b.WriteString("id INT(12) NOT NULL PRIMARY KEY AUTO_INCREMENT,")
	}
	for i, f := range t.ColumnNames {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(quote(f.Title) + " " + f.Type)
	}
	b.WriteString(") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;")
	return b.String(), nil
}

func InsertSQL(t TableData) (string, error) {
	if len(t.ColumnNames) == 0 {
		return "", errors.New("empty column")
	}
	if t.DataCount == 0 || len(t.Args) != t.DataCount*len(t.ColumnNames) {
		return "", errors.New("args do not match columns")
	}
	titles := make([]string, 0, len(t.ColumnNames))
	for _, f := range t.ColumnNames {
		titles = append(titles, quote(f.Title))
	}
	blank := ",(" + strings.Repeat(",?", len(t.ColumnNames))[1:] + ")"
	return "INSERT INTO " + quote(t.TableName) + "(" + strings.Join(titles, ",") + ") VALUES " +
		strings.Repeat(blank, t.DataCount)[1:] + ";", nil
}

func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

type Field struct {
	Title string
	Type  string
}

type TableData struct {
	TableName   string
	ColumnNames []Field
	Args        []interface{}
	DataCount   int // 插入的行数
	AutoKey     bool
}
