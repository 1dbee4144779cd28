package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"proxylink/internal/client"
	"proxylink/internal/client/cli"
	"proxylink/internal/config"
	corelog "proxylink/internal/core/log"
	"proxylink/internal/core/metrics"
	"proxylink/internal/host"
)

// connect 命令标志
var (
	connHost        string
	connPort        int
	connMode        string
	connTransport   string
	connSocksTarget string
	connSocksUser   string
	connAskPassword bool
	connNoReconnect bool
	connInteractive bool
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to the server and keep the connection alive",
	Long: `Connect to the server and keep the connection alive.

Flags override the config file. In a terminal an interactive console is
started; otherwise the command runs until SIGINT or SIGTERM.

Example:
  proxylink connect --host 10.0.0.5 --port 9000
  proxylink connect -t websocket --host relay.local --port 443
  proxylink connect --socks-target backend:80 --socks-user alice --ask-password`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

func init() {
	f := connectCmd.Flags()
	f.StringVar(&connHost, "host", "", "Server host")
	f.IntVarP(&connPort, "port", "p", 0, "Server port")
	f.StringVarP(&connMode, "mode", "m", "", "Start mode: worker/service")
	f.StringVarP(&connTransport, "transport", "t", "", "Transport protocol: tcp/websocket/ws/quic/kcp")
	f.StringVar(&connSocksTarget, "socks-target", "", "Connect to this host:port through the server as a SOCKS5 proxy")
	f.StringVar(&connSocksUser, "socks-user", "", "SOCKS5 username")
	f.BoolVar(&connAskPassword, "ask-password", false, "Prompt for the SOCKS5 password")
	f.BoolVar(&connNoReconnect, "no-reconnect", false, "Disable automatic reconnect")
	f.BoolVarP(&connInteractive, "interactive", "i", true, "Start the interactive console when stdin is a terminal")
}

// applyConnectFlags 命令行参数覆盖配置文件
func applyConnectFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = connHost
	}
	if flags.Changed("port") {
		cfg.Server.Port = connPort
	}
	if flags.Changed("mode") {
		cfg.Mode = strings.ToLower(connMode)
	}
	if flags.Changed("transport") {
		cfg.Transport.Protocol = normalizeProtocol(connTransport)
	}
	if connSocksTarget != "" {
		cfg.Proxy.Type = config.ProxySOCKS5
		cfg.Proxy.Target = connSocksTarget
	}
	if connSocksUser != "" {
		cfg.Proxy.Username = connSocksUser
	}
	if connAskPassword {
		pw, err := cli.PromptPassword("SOCKS5 password: ")
		if err != nil {
			return err
		}
		cfg.Proxy.Password = pw
	}
	if connNoReconnect {
		cfg.Reconnect.Enabled = false
	}
	return cfg.Validate()
}

// normalizeProtocol 规范化协议名称
func normalizeProtocol(protocol string) string {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	if protocol == "ws" {
		return "websocket"
	}
	return protocol
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyConnectFlags(cmd, cfg); err != nil {
		return err
	}

	closer, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()
	if path != "" {
		corelog.Infof("Main: using config %s", path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		shutdown, err := startMetrics(cfg.Metrics.Listen)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	factory, err := cfg.Factory()
	if err != nil {
		return err
	}

	out := cli.NewOutput(cmd.OutOrStdout(), noColor)
	env := &client.HostContext{Network: cfg.NetworkChecker()}

	var svc *host.LocalService
	if cfg.Mode == config.ModeService {
		svc = host.NewLocalService(ctx, nil)
		defer svc.Close()
		env.Binder = host.NewLocalBinder(ctx, svc, 0)
	}

	sessCfg := cfg.SessionConfig()
	sess := client.NewSession(ctx, env, factory, cli.EventPrinter{Out: out},
		client.WithConfig(sessCfg),
		client.WithConnector(client.NewTransportConnector(sessCfg.Protocol, sessCfg.WebSocketPath)),
	)
	defer sess.Stop()

	if cfg.Mode == config.ModeService {
		err = sess.StartWithService(cfg.Server.Host, cfg.Server.Port)
	} else {
		err = sess.StartWithWorker(cfg.Server.Host, cfg.Server.Port)
	}
	if err != nil {
		return err
	}
	out.Info("Session %s connecting to %s (%s, %s)", sess.ID()[:8], cfg.ServerAddress(), cfg.Mode, sessCfg.Protocol)

	if connInteractive && isatty.IsTerminal(os.Stdin.Fd()) {
		if err := cli.NewREPL(ctx, sess, out, sendSuffix(cfg)).Run(); err != nil {
			return err
		}
	} else {
		<-ctx.Done()
	}

	out.Info("Shutting down session %s", sess.ID()[:8])
	return nil
}

// sendSuffix 控制台 send 追加的帧分隔符
func sendSuffix(cfg *config.Config) []byte {
	if strings.EqualFold(cfg.Codec.Type, config.CodecRaw) || len(cfg.Codec.Delimiters) == 0 {
		return nil
	}
	return []byte(cfg.Codec.Delimiters[0])
}

func startMetrics(listen string) (func(), error) {
	prom := metrics.NewPrometheusMetrics(metrics.DefaultNamespace)
	if err := metrics.SetGlobalMetrics(prom); err != nil {
		return nil, err
	}
	srv := metrics.NewServer(listen, prom)
	if err := srv.Start(); err != nil {
		metrics.ResetGlobalMetrics()
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			corelog.Warnf("Metrics: shutdown failed: %v", err)
		}
		metrics.ResetGlobalMetrics()
	}, nil
}
