// Package cli 交互式命令行：彩色输出、提示输入与会话 REPL
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorWarning = color.New(color.FgYellow).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorBold    = color.New(color.Bold).SprintFunc()
	colorFaint   = color.New(color.Faint).SprintFunc()
)

// Output 结构化终端输出，可被会话回调与 REPL 并发调用
type Output struct {
	mu sync.Mutex
	w  io.Writer
}

// NewOutput 创建输出工具，w 为 nil 时写 stdout
//
// noColor 关闭全部颜色（全局生效，与 fatih/color 一致）。
func NewOutput(w io.Writer, noColor bool) *Output {
	if w == nil {
		w = os.Stdout
	}
	if noColor {
		color.NoColor = true
	}
	return &Output{w: w}
}

// Writer 底层输出，供 readline 刷新提示符时使用
func (o *Output) Writer() io.Writer {
	return o.w
}

// SetWriter 替换输出
func (o *Output) SetWriter(w io.Writer) {
	o.mu.Lock()
	o.w = w
	o.mu.Unlock()
}

func (o *Output) line(prefix, format string, args ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}

// Success 成功消息
func (o *Output) Success(format string, args ...interface{}) {
	o.line(colorSuccess("[ok]"), format, args...)
}

// Error 错误消息
func (o *Output) Error(format string, args ...interface{}) {
	o.line(colorError("[error]"), format, args...)
}

// Warning 警告消息
func (o *Output) Warning(format string, args ...interface{}) {
	o.line(colorWarning("[warn]"), format, args...)
}

// Info 提示消息
func (o *Output) Info(format string, args ...interface{}) {
	o.line(colorInfo("[info]"), format, args...)
}

// Plain 无前缀
func (o *Output) Plain(format string, args ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, format+"\n", args...)
}

// Header 标题
func (o *Output) Header(title string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.w, colorBold(title))
	fmt.Fprintln(o.w, colorFaint(strings.Repeat("━", len(title))))
}

// KeyValue 键值对
func (o *Output) KeyValue(key, value string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, "  %-20s %s\n", colorBold(key+":"), value)
}
