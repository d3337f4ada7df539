package collect

import (
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

/*
输入响应体和Content-Type，输出utf-8编码的页面内容

BOM和Content-Type声明的编码优先；否则只要整个响应体是合法的utf-8就按utf-8处理，
不合法时再使用<meta>标签或windows-1252
*/
func DecodeBody(body []byte, contentType string) (string, error) {
	e, name, certain := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || (!certain && utf8.Valid(body)) {
		return string(body), nil
	}
	utf8Body, _, err := transform.Bytes(e.NewDecoder(), body)
	if err != nil {
		return "", err
	}
	return string(utf8Body), nil
}
