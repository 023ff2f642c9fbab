package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"framecast/internal/api"
	"framecast/internal/pipeline"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var kindStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const ansiReset = "\x1b[0m"

// report writes aligned "label: [KIND] message" lines grouped under section
// headers, colored when out is a terminal.
type report struct {
	out   io.Writer
	color bool
}

func newReport(out io.Writer) report {
	return report{out: out, color: shouldColorize(out)}
}

func (r report) paint(color, s string) string {
	if !r.color || color == "" {
		return s
	}
	return color + s + ansiReset
}

func (r report) section(title string) {
	heading := "== " + strings.TrimSpace(title) + " =="
	blue := kindStyles[statusInfo].color
	fmt.Fprintln(r.out, r.paint(blue, heading))
	fmt.Fprintln(r.out, r.paint(blue, strings.Repeat("-", len(heading))))
}

func (r report) line(label string, kind statusKind, message string) {
	style := kindStyles[kind]
	status := "[" + style.label + "]"
	if message != "" {
		status += " " + message
	}
	fmt.Fprintln(r.out, r.paint(style.color, fmt.Sprintf("  %-20s %s", label+":", status)))
}

// checkKind maps a health check to a status: failed advisory checks warn.
func checkKind(check api.HealthCheck) statusKind {
	switch {
	case check.Ready:
		return statusOK
	case check.Advisory:
		return statusWarn
	}
	return statusError
}

func stepKind(status string) statusKind {
	switch status {
	case pipeline.StepSucceeded:
		return statusOK
	case pipeline.StepSkipped:
		return statusWarn
	case pipeline.StepFailed:
		return statusError
	}
	return statusInfo
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
