package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/ericfisherdev/artsengine/internal/domain/model"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiBlue  = "\x1b[34m"
)

func renderStatus(st model.Status, colorize bool) string {
	line := fmt.Sprintf("[%s] %s", levelLabel(st.Level), st.Message)
	if st.Hint != "" {
		line += " (" + st.Hint + ")"
	}
	if colorize {
		if color := levelColor(st.Level); color != "" {
			return color + line + ansiReset
		}
	}
	return line
}

func levelLabel(level model.StatusLevel) string {
	switch level {
	case model.StatusSuccess:
		return "OK"
	case model.StatusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func levelColor(level model.StatusLevel) string {
	switch level {
	case model.StatusSuccess:
		return ansiGreen
	case model.StatusError:
		return ansiRed
	case model.StatusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isTerminal(file)
}

func isTerminal(file *os.File) bool {
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
