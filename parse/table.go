package parse

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// 一行数据，第i个值对应第i个列选择器
type Row []string

type Table []Row

// 选择器无法编译或求值
type SelectorError struct {
	Expr string
	Err  error
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("invalid xpath %q: %v", e.Expr, e.Err)
}

func (e *SelectorError) Unwrap() error {
	return e.Err
}

/*
输入若干xpath表达式，输出编译后的表达式

在抓取开始前编译全部选择器，任何一个非法都直接返回错误，不会发起请求
*/
func Compile(exprs ...string) ([]*xpath.Expr, error) {
	compiled := make([]*xpath.Expr, 0, len(exprs))
	for _, e := range exprs {
		e = strings.TrimSpace(e)
		expr, err := xpath.Compile(e)
		if err != nil {
			return nil, &SelectorError{Expr: e, Err: err}
		}
		compiled = append(compiled, expr)
	}
	return compiled, nil
}

// 解析后的页面，列提取和下一页链接查找共用同一棵节点树
type Page struct {
	doc *html.Node
}

// html解析器能容忍不规范的标签
func ParsePage(content string) (*Page, error) {
	doc, err := htmlquery.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html failed:%w", err)
	}
	return &Page{doc: doc}, nil
}

/*
输入页面内容和列选择器，输出表格

对每个选择器按文档顺序取出匹配节点的文本作为一列，再按位置把列转换成行
*/
func Extract(content string, columns []*xpath.Expr) (Table, error) {
	p, err := ParsePage(content)
	if err != nil {
		return nil, err
	}
	return p.Extract(columns)
}

func (p *Page) Extract(columns []*xpath.Expr) (Table, error) {
	cols := make([][]string, 0, len(columns))
	for _, expr := range columns {
		nodes, err := p.query(expr)
		if err != nil {
			return nil, err
		}
		values := make([]string, 0, len(nodes))
		for _, n := range nodes {
			values = append(values, TextContent(n))
		}
		cols = append(cols, values)
	}
	return Transpose(cols), nil
}

/*
输入一个选择器，输出第一个匹配节点的href属性

没有匹配节点或节点没有href属性时ok为false
*/
func (p *Page) Href(expr *xpath.Expr) (href string, ok bool, err error) {
	nodes, err := p.query(expr)
	if err != nil || len(nodes) == 0 {
		return "", false, err
	}
	for _, attr := range nodes[0].Attr {
		if attr.Key == "href" {
			return attr.Val, true, nil
		}
	}
	return "", false, nil
}

// 非节点集表达式(如count())在求值时会panic，转换为SelectorError
func (p *Page) query(expr *xpath.Expr) (nodes []*html.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SelectorError{Expr: expr.String(), Err: fmt.Errorf("%v", r)}
		}
	}()
	return htmlquery.QuerySelectorAll(p.doc, expr), nil
}

// 按位置组合各列，行数等于最短列的长度，较长列多出的值被丢弃
func Transpose(cols [][]string) Table {
	if len(cols) == 0 {
		return nil
	}
	n := len(cols[0])
	for _, c := range cols[1:] {
		n = min(n, len(c))
	}
	table := make(Table, 0, n)
	for i := 0; i < n; i++ {
		row := make(Row, len(cols))
		for j, c := range cols {
			row[j] = c[i]
		}
		table = append(table, row)
	}
	return table
}
