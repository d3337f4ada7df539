package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dszqbsm/scraper/collect"
	"github.com/dszqbsm/scraper/config"
	"github.com/dszqbsm/scraper/engine"
	"github.com/dszqbsm/scraper/extensions"
	"github.com/dszqbsm/scraper/limiter"
	"github.com/dszqbsm/scraper/log"
	"github.com/dszqbsm/scraper/proxy"
	"github.com/dszqbsm/scraper/storage"
	"github.com/dszqbsm/scraper/storage/csvstorage"
	"github.com/dszqbsm/scraper/storage/sqlstorage"
	"github.com/dszqbsm/scraper/storage/tablestorage"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 已经写入日志的错误，外层只需要设置退出码
type LoggedError struct {
	Err error
}

func (e *LoggedError) Error() string { return e.Err.Error() }

func (e *LoggedError) Unwrap() error { return e.Err }

// 一次命令行调用的输入：抓取地址或本地文件二选一，其余配置可以来自ini文件
type flags struct {
	url        string
	file       string
	configFile string
	cfg        config.Config
}

func NewScrapeCmd() *cobra.Command {
	f := &flags{cfg: config.Default()}
	cmd := &cobra.Command{
		Use:   "scrape [xpath...]",
		Short: "scrape a table from a url or a local html file.",
		Long: `scrape fetches a page, selects one column per xpath and writes the rows as CSV.
Extra positional arguments are appended to the --xpaths list.`,
		Example: `  scraper scrape -u example.com/list -x '//td[1]' '//td[2]' --next-page-xpath '//a[@rel="next"]' --max-page 3
  scraper scrape -f saved/index.html --xpath-file columns.txt -o rows.csv`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.cfg.Scrape.XPaths = append(f.cfg.Scrape.XPaths, args...)
			return runScrape(cmd, f)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.url, "url", "u", "", "URL of the first page to scrape")
	fs.StringVarP(&f.file, "file", "f", "", "local HTML file to scrape")
	fs.StringVar(&f.configFile, "config", "", "ini config file, explicit flags override its values")

	fs.StringVar(&f.cfg.Fetcher.ProxyFile, "proxy-file", f.cfg.Fetcher.ProxyFile, "file with one proxy per line")
	fs.BoolVarP(&f.cfg.Fetcher.FreeProxyList, "proxy", "p", f.cfg.Fetcher.FreeProxyList, "add proxies from free-proxy-list.net")
	fs.StringVarP(&f.cfg.Fetcher.UserAgentFile, "user-agent-file", "a", f.cfg.Fetcher.UserAgentFile, "file with one User-Agent per line")
	fs.StringVarP(&f.cfg.Fetcher.DelayRange, "delay-range", "d", f.cfg.Fetcher.DelayRange, "random delay before each request, FROM-TO in seconds")
	fs.IntVar(&f.cfg.Fetcher.Timeout, "timeout", f.cfg.Fetcher.Timeout, "request timeout in milliseconds")
	fs.StringArrayVar(&f.cfg.Fetcher.Limits, "limit", f.cfg.Fetcher.Limits, "request rate limit such as 20/1m, repeatable")
	fs.StringVar(&f.cfg.Fetcher.Cookie, "cookie", f.cfg.Fetcher.Cookie, "Cookie header sent with every request")

	fs.StringArrayVarP(&f.cfg.Scrape.XPaths, "xpaths", "x", f.cfg.Scrape.XPaths, "xpath selecting one column, repeatable")
	fs.StringVar(&f.cfg.Scrape.XPathFile, "xpath-file", f.cfg.Scrape.XPathFile, "file with one column xpath per line")
	fs.StringVar(&f.cfg.Scrape.NextPageXPath, "next-page-xpath", f.cfg.Scrape.NextPageXPath, "xpath of the next page link")
	fs.IntVar(&f.cfg.Scrape.MaxPage, "max-page", f.cfg.Scrape.MaxPage, "maximum number of pages, 0 means no limit")
	fs.StringVarP(&f.cfg.Scrape.SaveDir, "save-dir", "s", f.cfg.Scrape.SaveDir, "directory to save fetched pages")

	fs.StringVarP(&f.cfg.Output.File, "output-file", "o", f.cfg.Output.File, "write rows to this file instead of stdout")
	fs.StringVar(&f.cfg.Output.Format, "format", f.cfg.Output.Format, "output format: csv or table")
	fs.BoolVar(&f.cfg.Output.Header, "header", f.cfg.Output.Header, "write the column xpaths as the first row")
	fs.StringVar(&f.cfg.Output.SqlURL, "sql-url", f.cfg.Output.SqlURL, "MySQL DSN, rows are inserted instead of printed")
	fs.StringVar(&f.cfg.Output.Table, "table", f.cfg.Output.Table, "MySQL table name")

	fs.StringVar(&f.cfg.Log.File, "log-file", f.cfg.Log.File, "debug log file, empty disables it")
	fs.StringVar(&f.cfg.Log.Level, "log-level", f.cfg.Log.Level, "level of the log written to stderr")

	cmd.MarkFlagsMutuallyExclusive("url", "file")
	cmd.MarkFlagsOneRequired("url", "file")
	cmd.MarkFlagsMutuallyExclusive("xpaths", "xpath-file")
	return cmd
}

/*
输入命令和解析后的参数，输出一个错误

依次完成：合并配置文件、初始化日志、构建下载器与遍历器、选择输出，最后把遍历产出的行写入输出
*/
func runScrape(cmd *cobra.Command, f *flags) error {
	if f.configFile != "" {
		fileCfg, err := config.Load(f.configFile)
		if err != nil {
			return err
		}
		merge(cmd.Flags(), &f.cfg, fileCfg)
	}
	cfg := f.cfg

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := run(cmd, f, logger); err != nil {
		logger.Error("scrape failed", zap.Error(err))
		return &LoggedError{Err: err}
	}
	return nil
}

func run(cmd *cobra.Command, f *flags, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := f.cfg

	xpaths := cfg.Scrape.XPaths
	if cfg.Scrape.XPathFile != "" {
		lines, err := config.ReadLines(cfg.Scrape.XPathFile)
		if err != nil {
			return fmt.Errorf("read xpath file: %w", err)
		}
		xpaths = lines
	}
	if len(xpaths) == 0 {
		return errors.New("at least one xpath is required, use --xpaths or --xpath-file")
	}

	var (
		fetcher  collect.Fetcher
		location string
		err      error
	)
	if f.file != "" {
		fetcher, location, err = newFileFetcher(f.file)
	} else {
		location = collect.NormalizeLocation(f.url)
		fetcher, err = newNetworkFetcher(ctx, cfg.Fetcher, logger)
	}
	if err != nil {
		return err
	}

	walker, err := engine.NewWalker(
		engine.WithLogger(logger),
		engine.WithFetcher(fetcher),
		engine.WithColumns(xpaths...),
		engine.WithNextPage(cfg.Scrape.NextPageXPath),
		engine.WithMaxPage(cfg.Scrape.MaxPage),
		engine.WithSaveDir(cfg.Scrape.SaveDir),
	)
	if err != nil {
		return err
	}

	sink, closeSink, err := newStorage(cmd.OutOrStdout(), cfg.Output, xpaths, logger)
	if err != nil {
		return err
	}

	logger.Info("scrape start", zap.String("location", location), zap.Int("columns", len(xpaths)))
	count, err := storage.Drain(walker.Rows(ctx, location), sink)
	err = errors.Join(err, closeSink())
	logger.Info("scrape finished", zap.Int("rows", count))
	return err
}

// 文件由lumberjack写入并记录全部DEBUG日志，终端按--log-level过滤
func newLogger(cfg config.LogConfig) (*zap.Logger, func(), error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	plugins := []log.Plugin{log.NewStderrPlugin(level)}
	var closer io.Closer
	if cfg.File != "" {
		var plugin log.Plugin
		plugin, closer = log.NewFilePlugin(cfg.File, zapcore.DebugLevel)
		plugins = append(plugins, plugin)
	}
	logger := log.NewLogger(log.NewTeePlugin(plugins...))
	return logger, func() {
		_ = logger.Sync()
		if closer != nil {
			closer.Close()
		}
	}, nil
}

// 本地文件所在目录作为根目录，翻页链接相对于该目录解析
func newFileFetcher(file string) (collect.Fetcher, string, error) {
	info, err := os.Stat(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("cannot find input file %s: %w", file, collect.ErrNotFound)
		}
		return nil, "", err
	}
	if info.IsDir() {
		return nil, "", fmt.Errorf("input file %s is a directory", file)
	}
	return &collect.FileFetch{BaseDir: filepath.Dir(file)}, filepath.ToSlash(filepath.Base(file)), nil
}

func newNetworkFetcher(ctx context.Context, cfg config.FetcherConfig, logger *zap.Logger) (collect.Fetcher, error) {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	opts := []collect.Option{
		collect.WithLogger(logger),
		collect.WithTimeout(timeout),
		collect.WithCookie(cfg.Cookie),
	}

	if cfg.UserAgentFile != "" {
		pool, err := extensions.LoadUserAgentPool(cfg.UserAgentFile)
		if err != nil {
			return nil, fmt.Errorf("load user agents: %w", err)
		}
		logger.Debug("user agents loaded", zap.Int("count", pool.Len()))
		opts = append(opts, collect.WithUserAgents(pool))
	}

	if cfg.ProxyFile != "" || cfg.FreeProxyList {
		var extra []string
		if cfg.FreeProxyList {
			list, err := proxy.FreeProxyList(ctx, resty.New().SetTimeout(timeout))
			if err != nil {
				return nil, err
			}
			logger.Info("free proxies loaded", zap.Int("count", len(list)))
			extra = list
		}
		var pool *proxy.Pool
		if cfg.ProxyFile != "" {
			var err error
			if pool, err = proxy.LoadPool(cfg.ProxyFile, extra...); err != nil {
				return nil, fmt.Errorf("load proxies: %w", err)
			}
		} else {
			pool = proxy.NewPool(extra...)
		}
		logger.Debug("proxy pool", zap.Int("count", pool.Len()))
		opts = append(opts, collect.WithProxies(pool))
	}

	delay, err := limiter.ParseDelayRange(cfg.DelayRange)
	if err != nil {
		return nil, err
	}
	opts = append(opts, collect.WithDelay(delay))

	limit, err := limiter.ParseLimits(cfg.Limits)
	if err != nil {
		return nil, err
	}
	if limit != nil {
		opts = append(opts, collect.WithLimit(limit))
	}

	return collect.NewNetworkFetch(opts...), nil
}

/*
输入标准输出、输出配置、列选择器和日志，输出存储引擎和关闭函数

配置了--sql-url时写入MySQL，否则按--format写到文件或标准输出
*/
func newStorage(stdout io.Writer, cfg config.OutputConfig, xpaths []string, logger *zap.Logger) (storage.Storage, func() error, error) {
	if cfg.SqlURL != "" {
		store, err := sqlstorage.New(
			sqlstorage.WithLogger(logger),
			sqlstorage.WithSqlUrl(cfg.SqlURL),
			sqlstorage.WithTableName(cfg.Table),
			sqlstorage.WithBatchCount(cfg.Batch),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		return store, store.Close, nil
	}

	w := stdout
	closeFn := func() error { return nil }
	if cfg.File != "" {
		file, err := os.Create(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		w, closeFn = file, file.Close
	}

	var header []string
	if cfg.Header {
		header = xpaths
	}
	switch cfg.Format {
	case "", "csv":
		return csvstorage.New(w, csvstorage.WithHeader(header...)), closeFn, nil
	case "table":
		return tablestorage.New(w, header...), closeFn, nil
	default:
		closeFn()
		return nil, nil, fmt.Errorf("unknown output format %q", cfg.Format)
	}
}

// 配置文件的值只填充命令行没有显式设置的参数
func merge(fs *pflag.FlagSet, dst *config.Config, src config.Config) {
	set := func(name string, apply func()) {
		if !fs.Changed(name) {
			apply()
		}
	}
	set("log-file", func() { dst.Log.File = src.Log.File })
	set("log-level", func() { dst.Log.Level = src.Log.Level })

	set("proxy-file", func() { dst.Fetcher.ProxyFile = src.Fetcher.ProxyFile })
	set("proxy", func() { dst.Fetcher.FreeProxyList = src.Fetcher.FreeProxyList })
	set("user-agent-file", func() { dst.Fetcher.UserAgentFile = src.Fetcher.UserAgentFile })
	set("delay-range", func() { dst.Fetcher.DelayRange = src.Fetcher.DelayRange })
	set("timeout", func() { dst.Fetcher.Timeout = src.Fetcher.Timeout })
	set("limit", func() { dst.Fetcher.Limits = src.Fetcher.Limits })
	set("cookie", func() { dst.Fetcher.Cookie = src.Fetcher.Cookie })

	// 位置参数也算作显式指定的列
	if !fs.Changed("xpaths") && !fs.Changed("xpath-file") && len(dst.Scrape.XPaths) == 0 {
		dst.Scrape.XPaths = src.Scrape.XPaths
		dst.Scrape.XPathFile = src.Scrape.XPathFile
	}
	set("next-page-xpath", func() { dst.Scrape.NextPageXPath = src.Scrape.NextPageXPath })
	set("max-page", func() { dst.Scrape.MaxPage = src.Scrape.MaxPage })
	set("save-dir", func() { dst.Scrape.SaveDir = src.Scrape.SaveDir })

	set("output-file", func() { dst.Output.File = src.Output.File })
	set("format", func() { dst.Output.Format = src.Output.Format })
	set("header", func() { dst.Output.Header = src.Output.Header })
	set("sql-url", func() { dst.Output.SqlURL = src.Output.SqlURL })
	set("table", func() { dst.Output.Table = src.Output.Table })
	dst.Output.Batch = src.Output.Batch
}
