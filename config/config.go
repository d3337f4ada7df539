package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// 一次抓取的全部配置，可以来自ini配置文件，也可以来自命令行参数
type Config struct {
	Log     LogConfig     `ini:"log"`
	Fetcher FetcherConfig `ini:"fetcher"`
	Scrape  ScrapeConfig  `ini:"scrape"`
	Output  OutputConfig  `ini:"output"`
}

type LogConfig struct {
	File  string `ini:"file"`
	Level string `ini:"level"`
}

type FetcherConfig struct {
	ProxyFile     string   `ini:"proxy_file"`
	FreeProxyList bool     `ini:"free_proxy_list"`
	UserAgentFile string   `ini:"user_agent_file"`
	DelayRange    string   `ini:"delay_range"`
	Timeout       int      `ini:"timeout"`          // 毫秒
	Limits        []string `ini:"limits" delim:","` // 形如 20/1m，可以配置多个
	Cookie        string   `ini:"cookie"`
}

type ScrapeConfig struct {
	XPaths        []string `ini:"xpaths" delim:"|"`
	XPathFile     string   `ini:"xpath_file"`
	NextPageXPath string   `ini:"next_page_xpath"`
	MaxPage       int      `ini:"max_page"`
	SaveDir       string   `ini:"save_dir"`
}

type OutputConfig struct {
	File   string `ini:"file"`
	Format string `ini:"format"` // csv或table
	Header bool   `ini:"header"`
	SqlURL string `ini:"sql_url"`
	Table  string `ini:"table"`
	Batch  int    `ini:"batch"`
}

func Default() Config {
	return Config{
		Log: LogConfig{
			File:  "web_scraper.log",
			Level: "info",
		},
		Fetcher: FetcherConfig{
			DelayRange: "0.0-0.0",
			Timeout:    30000,
		},
		Output: OutputConfig{
			Format: "csv",
			Table:  "scrape_rows",
			Batch:  100,
		},
	}
}

/*
输入一个ini配置文件路径，输出配置

先填充默认值，再用配置文件中出现的键覆盖
*/
func Load(fileName string) (Config, error) {
	cfg := Default()
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", fileName, err)
	}
	if err := iniFile.MapTo(&cfg); err != nil {
		return cfg, fmt.Errorf("map config %s: %w", fileName, err)
	}
	return cfg, nil
}

// 按行读取文件，去掉首尾空白并忽略空行
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
