package limiter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// 限速器接口，Wait会阻塞调用者直到可以继续执行或上下文被取消
type RateLimiter interface {
	Wait(context.Context) error
	Limit() rate.Limit
}

// 按速率从小到大排序后组合多个限速器
func Multi(limiters ...RateLimiter) *multiLimiter {
	byLimit := func(i, j int) bool {
		return limiters[i].Limit() < limiters[j].Limit()
	}
	sort.Slice(limiters, byLimit)
	return &multiLimiter{limiters: limiters}
}

type multiLimiter struct {
	limiters []RateLimiter
}

// 所有限速器都放行才返回
func (l *multiLimiter) Wait(ctx context.Context) error {
	for _, l := range l.limiters {
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// 最严格的速率
func (l *multiLimiter) Limit() rate.Limit {
	if len(l.limiters) == 0 {
		return rate.Inf
	}
	return l.limiters[0].Limit()
}

// eventCount次事件均匀分布在duration内
func Per(eventCount int, duration time.Duration) rate.Limit {
	return rate.Every(duration / time.Duration(eventCount))
}

/*
输入形如"20/1m"的限速描述，输出一个令牌桶限速器

斜杠前为事件数，斜杠后为时间窗口(time.ParseDuration格式)，桶大小为1，避免突发请求
*/
func ParseLimit(s string) (RateLimiter, error) {
	countText, durText, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return nil, fmt.Errorf("invalid limit %q", s)
	}
	count, err := strconv.Atoi(countText)
	if err != nil || count <= 0 {
		return nil, fmt.Errorf("invalid limit %q", s)
	}
	dur, err := time.ParseDuration(durText)
	if err != nil || dur <= 0 {
		return nil, fmt.Errorf("invalid limit %q", s)
	}
	return rate.NewLimiter(Per(count, dur), 1), nil
}

// 解析多个限速描述并组合，没有描述时返回nil
func ParseLimits(specs []string) (RateLimiter, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	limits := make([]RateLimiter, 0, len(specs))
	for _, spec := range specs {
		l, err := ParseLimit(spec)
		if err != nil {
			return nil, err
		}
		limits = append(limits, l)
	}
	return Multi(limits...), nil
}
