package collect

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// 从本地目录读取页面，用于重放--save-dir保存的页面或解析单个文件。不重试、不延时；
// 合法的utf-8内容原样返回，其他内容按<meta>检测编码
type FileFetch struct {
	BaseDir string
}

func (f *FileFetch) Fetch(ctx context.Context, location string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := location
	if u, err := url.Parse(location); err == nil && u.Path != "" {
		p = u.Path
	}
	path := filepath.Join(f.BaseDir, LocalPath(p))

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("read %s failed:%w", path, err)
	}
	// 保存的页面已经转成utf-8，但<meta>中仍可能声明原来的编码
	if utf8.Valid(b) {
		return string(b), nil
	}
	return DecodeBody(b, "")
}
