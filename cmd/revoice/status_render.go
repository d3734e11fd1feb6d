package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const ansiReset = "\x1b[0m"

var statusColors = map[statusKind]string{
	statusInfo:  "\x1b[34m",
	statusOK:    "\x1b[32m",
	statusWarn:  "\x1b[33m",
	statusError: "\x1b[31m",
}

var statusLabels = map[statusKind]string{
	statusInfo:  "INFO",
	statusOK:    "OK",
	statusWarn:  "WARN",
	statusError: "ERROR",
}

// printStatusLine writes one aligned "label: [KIND] message" line.
func printStatusLine(out io.Writer, label string, kind statusKind, message string, colorize bool) {
	line := fmt.Sprintf("  %-20s [%s] %s", label+":", statusLabels[kind], message)
	line = strings.TrimRight(line, " ")
	if colorize {
		if color := statusColors[kind]; color != "" {
			line = color + line + ansiReset
		}
	}
	fmt.Fprintln(out, line)
}

// printSectionHeader writes an underlined section title.
func printSectionHeader(out io.Writer, title string, colorize bool) {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = statusColors[statusInfo] + line + ansiReset
		rule = statusColors[statusInfo] + rule + ansiReset
	}
	fmt.Fprintln(out, line)
	fmt.Fprintln(out, rule)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
