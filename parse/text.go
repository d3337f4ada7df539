package parse

import (
	"strings"

	"golang.org/x/net/html"
)

/*
输入一个节点，输出节点的文本内容

依次拼接：节点开头的文本，每个子节点自身的文本和紧随其后的文本，节点之后紧随的文本，最后去掉首尾空白。
孙子节点中的文本不会被收集。文本节点和属性节点直接返回其值
*/
func TextContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}

	var b strings.Builder
	b.WriteString(leadingText(n))
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			continue
		}
		b.WriteString(ownText(c))
		b.WriteString(tailText(c))
	}
	b.WriteString(tailText(n))
	return strings.TrimSpace(b.String())
}

// 第一个非文本子节点之前的文本
func leadingText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil && c.Type == html.TextNode; c = c.NextSibling {
		b.WriteString(c.Data)
	}
	return b.String()
}

func ownText(n *html.Node) string {
	switch n.Type {
	case html.ElementNode:
		return leadingText(n)
	case html.CommentNode:
		return n.Data
	}
	return ""
}

// 节点之后、下一个非文本兄弟节点之前的文本
func tailText(n *html.Node) string {
	var b strings.Builder
	for s := n.NextSibling; s != nil && s.Type == html.TextNode; s = s.NextSibling {
		b.WriteString(s.Data)
	}
	return b.String()
}
