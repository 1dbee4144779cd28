package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	coreerrors "proxylink/internal/core/errors"
)

// PromptPassword 无回显读取密码，stdin 不是终端时报错
func PromptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", coreerrors.New(coreerrors.CodeInvalidParam, "stdin is not a terminal, cannot prompt for password")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", coreerrors.Wrap(err, coreerrors.CodeInvalidParam, "read password")
	}
	return strings.TrimSpace(string(b)), nil
}

// Confirm 读取一行 yes/no 回答，只有 y 或 yes 为真
func Confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s (yes/no): ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
