package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/common-nighthawk/go-figure"
)

var commands = []struct{ cmd, desc string }{
	{"medhub", "Open the dashboard (interactive TUI)"},
	{"medhub login", "Sign in with email and password"},
	{"medhub logout", "Clear the saved session"},
	{"medhub whoami", "Show the signed-in user and role"},
	{"medhub portal", "Open the web portal in a browser"},
	{"medhub --version", "Show version"},
	{"medhub help", "Show this help"},
}

func printHelp(w io.Writer) {
	banner := figure.NewFigure("medhub", "small", true).String()
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#38bdf8")).
		Bold(true).
		Render(banner)

	tagline := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render("Clinic staff dashboard for the terminal")

	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	fmt.Fprintf(w, "\n%s\n  %s\n\n  Commands:\n", title, tagline) //nolint:errcheck
	for _, c := range commands {
		fmt.Fprintf(w, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-18s", c.cmd)), descStyle.Render(c.desc)) //nolint:errcheck
	}
	env := descStyle.Render("MEDHUB_API_URL, MEDHUB_HOME, MEDHUB_PORTAL_URL, MEDHUB_LOG_LEVEL, MEDHUB_TIMEOUT, MEDHUB_RATE_LIMIT")
	fmt.Fprintf(w, "\n  Environment:\n    %s\n\n", env) //nolint:errcheck
}
