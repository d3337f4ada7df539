package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/dszqbsm/scraper/cmd/scrape"
	"github.com/dszqbsm/scraper/version"
	"github.com/spf13/cobra"
)

// scrape子命令执行抓取，version子命令打印版本信息，执行./scraper -h可以看到cobra生成的帮助文档

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version.",
	Long:  "print version.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		version.Printer(cmd.OutOrStdout())
	},
}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "scraper",
		Short:         "scrape tables from paginated web pages with xpath.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.AddCommand(scrape.NewScrapeCmd(), versionCmd)
	return rootCmd
}

// 出错时以非0状态码退出；抓取过程中的错误已经写入日志，不再重复打印
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		var logged *scrape.LoggedError
		if !errors.As(err, &logged) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
