package limiter

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidRange = errors.New("invalid delay range")

// 随机延时：每次请求前在[From, To]内随机休眠，用来降低被限流和反爬识别的概率
type RandomDelay struct {
	From time.Duration
	To   time.Duration
}

func NewRandomDelay(from, to time.Duration) (*RandomDelay, error) {
	if from < 0 || from > to {
		return nil, fmt.Errorf("%w: %v-%v", ErrInvalidRange, from, to)
	}
	return &RandomDelay{From: from, To: to}, nil
}

/*
输入形如"FROM-TO"的字符串(单位秒，可以是小数)，输出随机延时

例如"0.5-2"表示每次请求前随机休眠0.5到2秒
*/
func ParseDelayRange(s string) (*RandomDelay, error) {
	fromText, toText, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	from, err := parseSeconds(fromText)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	to, err := parseSeconds(toText)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	return NewRandomDelay(from, to)
}

func parseSeconds(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Second)), nil
}

// 在闭区间[From, To]内均匀抽取一个时长
func (d *RandomDelay) Next() time.Duration {
	span := int64(d.To - d.From)
	if span <= 0 {
		return d.From
	}
	return d.From + time.Duration(rand.Int63n(span+1))
}

// 阻塞当前调用者，上下文取消时提前返回
func (d *RandomDelay) Sleep(ctx context.Context) error {
	delay := d.Next()
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
