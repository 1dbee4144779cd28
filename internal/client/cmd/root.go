// Package cmd proxylink 命令行入口
package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"proxylink/internal/config"
	corelog "proxylink/internal/core/log"
	"proxylink/internal/version"
)

// 全局标志
var (
	configFile string
	logLevel   string
	logFile    string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "proxylink",
	Short: "Persistent client connection with reconnect and idle monitoring",
	Long: `proxylink keeps a client connection to a server alive.

It dials over tcp, websocket, quic or kcp, optionally through a SOCKS5 proxy,
monitors idle time, and reconnects with a fixed delay up to a bounded number
of attempts.

Quick Start:
  proxylink connect --host 127.0.0.1 --port 9000
  proxylink connect --mode service --socks-target backend:80
  proxylink config init`,
	Version:       version.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行根命令
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			corelog.Errorf("FATAL: main goroutine panic recovered: %v", r)
			fmt.Fprintf(os.Stderr, "\nPANIC: %v\nStack trace:\n%s\n", r, debug.Stack())
			os.Exit(2)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug/info/warn/error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log", "", "Log file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig 加载配置并应用全局标志
func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.Load(configFile)
	if err != nil {
		return nil, "", err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFile != "" {
		cfg.Log.Output = "file"
		cfg.Log.File = logFile
	}
	return cfg, path, nil
}

// setupLogging 按配置初始化默认 Logger
func setupLogging(cfg *config.Config) (io.Closer, error) {
	closer, err := corelog.Init(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	return closer, nil
}
