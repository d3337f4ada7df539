package extensions

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/dszqbsm/scraper/config"
)

var ErrEmptyPool = errors.New("user agent pool is empty")

// User-Agent池，每次从集合中等概率随机选取一个，与之前的选择无关
type UserAgentPool struct {
	agents []string
}

// 去重后保存，空字符串会被忽略
func NewUserAgentPool(agents ...string) *UserAgentPool {
	seen := make(map[string]bool, len(agents))
	p := &UserAgentPool{}
	for _, a := range agents {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		p.agents = append(p.agents, a)
	}
	return p
}

// 从文件中读取User-Agent列表，每行一个
func LoadUserAgentPool(path string) (*UserAgentPool, error) {
	lines, err := config.ReadLines(path)
	if err != nil {
		return nil, fmt.Errorf("load user agent file: %w", err)
	}
	return NewUserAgentPool(lines...), nil
}

func (p *UserAgentPool) Get() (string, error) {
	if len(p.agents) == 0 {
		return "", ErrEmptyPool
	}
	return p.agents[rand.Intn(len(p.agents))], nil
}

func (p *UserAgentPool) Len() int {
	return len(p.agents)
}
