package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"

	"proxylink/internal/client"
	coreerrors "proxylink/internal/core/errors"
	corelog "proxylink/internal/core/log"
	"proxylink/internal/core/safe"
	"proxylink/internal/pipeline"
)

const prompt = "\033[32mproxylink>\033[0m "

// Session REPL 驱动的会话操作
type Session interface {
	SendData(data []byte) bool
	Status() client.Status
	CloseConnect()
	ReConnectServer(hostname string, port int, closeAutoReconnect bool)
}

// REPL 交互式会话控制台
type REPL struct {
	ctx    context.Context
	sess   Session
	out    *Output
	suffix []byte
	rl     *readline.Instance
}

// NewREPL 创建控制台，suffix 追加到每条 send 的数据之后（如帧分隔符）
func NewREPL(ctx context.Context, sess Session, out *Output, suffix []byte) *REPL {
	if out == nil {
		out = NewOutput(nil, false)
	}
	return &REPL{ctx: ctx, sess: sess, out: out, suffix: suffix}
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("send"),
		readline.PcItem("status"),
		readline.PcItem("close"),
		readline.PcItem("reconnect", readline.PcItem("--no-auto")),
		readline.PcItem("quit"),
		readline.PcItem("exit"),
	)
}

// Run 阻塞读取命令直到 quit、EOF 或 ctx 取消，要求 stdin 为终端
func (r *REPL) Run() error {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return coreerrors.New(coreerrors.CodeInvalidParam, "stdin is not a terminal (TTY required for interactive console)")
	}

	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".proxylink_history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		HistoryLimit:    500,
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeInternal, "initialize readline")
	}
	r.rl = rl
	defer rl.Close()

	// 异步事件经 readline 输出，避免打断正在输入的提示符
	prev := r.out.Writer()
	r.out.SetWriter(rl.Stdout())
	defer r.out.SetWriter(prev)

	ctx, cancel := context.WithCancel(r.ctx)
	defer cancel()
	safe.GoWithContext(ctx, "repl-cancel", func(ctx context.Context) {
		<-ctx.Done()
		if r.ctx.Err() != nil {
			_ = rl.Close()
		}
	})

	r.out.Info("Type 'help' to see available commands")
	for {
		line, err := rl.Readline()
		switch {
		case err == readline.ErrInterrupt:
			if len(line) == 0 {
				r.out.Info("Use 'quit' to exit")
			}
			continue
		case err == io.EOF:
			return nil
		case err != nil:
			if r.ctx.Err() != nil {
				return nil
			}
			corelog.Errorf("CLI: readline error: %v", err)
			return err
		}
		if r.Execute(line) {
			return nil
		}
	}
}

// Execute 执行一行命令，返回是否退出
func (r *REPL) Execute(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	name, rest, _ := strings.Cut(line, " ")
	args := strings.Fields(rest)

	switch strings.ToLower(name) {
	case "help", "h", "?":
		r.help()
	case "send", "s":
		r.send(strings.TrimLeft(rest, " "))
	case "status", "st":
		r.status()
	case "close":
		r.sess.CloseConnect()
		r.out.Success("Connection closed")
	case "reconnect", "rc":
		r.reconnect(args)
	case "quit", "exit", "q":
		return true
	default:
		r.out.Error("Unknown command: %s", name)
		r.out.Info("Type 'help' to see available commands")
	}
	return false
}

func (r *REPL) help() {
	r.out.Header("Commands")
	r.out.KeyValue("send <text>", "send text to the server")
	r.out.KeyValue("status", "show session status")
	r.out.KeyValue("close", "close the connection and stop reconnecting")
	r.out.KeyValue("reconnect [host port]", "reconnect, add --no-auto to skip one retry cycle")
	r.out.KeyValue("quit", "stop the session and exit")
}

func (r *REPL) send(text string) {
	if text == "" {
		r.out.Error("Usage: send <text>")
		return
	}
	data := append([]byte(text), r.suffix...)
	if !r.sess.SendData(data) {
		r.out.Warning("Not connected, data dropped")
		return
	}
	r.out.Success("Queued %d bytes", len(data))
}

func (r *REPL) status() {
	st := r.sess.Status()
	r.out.Header("Session " + st.ID)
	r.out.KeyValue("State", st.State)
	r.out.KeyValue("Mode", orDash(st.Mode))
	if st.Host != "" {
		r.out.KeyValue("Server", st.Host+":"+strconv.Itoa(st.Port))
	}
	r.out.KeyValue("Connected", strconv.FormatBool(st.Connected))
	r.out.KeyValue("Proxy", orDash(st.Proxy))
	r.out.KeyValue("Reconnect attempt", strconv.Itoa(st.ReconnectAttempt))
	r.out.KeyValue("Bytes read", strconv.FormatInt(st.BytesRead, 10))
	r.out.KeyValue("Bytes written", strconv.FormatInt(st.BytesWritten, 10))
}

func (r *REPL) reconnect(args []string) {
	noAuto := false
	var rest []string
	for _, a := range args {
		if a == "--no-auto" {
			noAuto = true
			continue
		}
		rest = append(rest, a)
	}

	st := r.sess.Status()
	hostname, port := st.Host, st.Port
	switch len(rest) {
	case 0:
	case 2:
		p, err := strconv.Atoi(rest[1])
		if err != nil || p <= 0 || p > 65535 {
			r.out.Error("Invalid port: %s", rest[1])
			return
		}
		hostname, port = rest[0], p
	default:
		r.out.Error("Usage: reconnect [host port] [--no-auto]")
		return
	}
	if hostname == "" {
		r.out.Error("No server address, use: reconnect <host> <port>")
		return
	}
	r.sess.ReConnectServer(hostname, port, noAuto)
	r.out.Info("Reconnecting to %s:%d", hostname, port)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// EventPrinter 把会话事件打印到终端
type EventPrinter struct {
	Out *Output
}

// OnChannelStateChange 实现 pipeline.ChannelListener
func (p EventPrinter) OnChannelStateChange(proxy *pipeline.ProxyHandle, connectedToProxy, connectedToTarget bool, code pipeline.StateCode) {
	switch code {
	case pipeline.StateTargetConnected:
		p.Out.Success("%s %s", code, proxy)
	case pipeline.StateConnectFailed, pipeline.StateProxyAuthError:
		p.Out.Error("%s %s", code, proxy)
	case pipeline.StateConnectRelease:
		p.Out.Warning("%s %s", code, proxy)
	default:
		p.Out.Info("%s %s", code, proxy)
	}
}

// OnChannelMessage 实现 pipeline.MessageListener
func (p EventPrinter) OnChannelMessage(proxy *pipeline.ProxyHandle, msg []byte) {
	p.Out.Plain("%s %s", colorFaint("<"), msg)
}
