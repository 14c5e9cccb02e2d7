// Package ui provides the ASCII banner for the StashQ CLI.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// banner is the ASCII art logo for the StashQ CLI.
const banner = `
  ███████╗████████╗ █████╗ ███████╗██╗  ██╗ ██████╗
  ██╔════╝╚══██╔══╝██╔══██╗██╔════╝██║  ██║██╔═══██╗
  ███████╗   ██║   ███████║███████╗███████║██║   ██║
  ╚════██║   ██║   ██╔══██║╚════██║██╔══██║██║▄▄ ██║
  ███████║   ██║   ██║  ██║███████║██║  ██║╚██████╔╝
  ╚══════╝   ╚═╝   ╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝ ╚══▀▀═╝ `

// tagline is the product tagline.
const tagline = "Your Archive Queue, Live"

// PrintBanner prints the StashQ banner with version info.
//
// Parameters:
//   - version: The CLI version string to display
func PrintBanner(version string) {
	if quietMode {
		return
	}

	styledBanner := lipgloss.NewStyle().
		Foreground(Blue).
		Bold(true).
		Render(banner)

	fmt.Println(styledBanner)
	fmt.Println()

	taglineStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		PaddingLeft(2)
	fmt.Println(taglineStyle.Render(tagline))
	fmt.Println()

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		PaddingLeft(2)

	fmt.Println(infoStyle.Render(fmt.Sprintf("Version: %s", version)))
	fmt.Println(infoStyle.Render("Docs:    https://docs.stashq.io"))
	fmt.Println()
}

// GetHelpText returns the curated help text for the CLI, used by
// `stashq --help`, without the ASCII banner.
func GetHelpText() string {
	blue := lipgloss.NewStyle().Foreground(Blue).Bold(true)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	return fmt.Sprintf(`%s

%s
  %s       Authenticate with your StashQ account
  %s            Monitor your archive jobs live
  %s     Fetch one job's full record

%s
  %s           Check CLI health and connectivity
  %s             Test API connectivity

%s  https://docs.stashq.io
%s  support@stashq.io`,
		dim.Render(tagline+". Watch every archive job as it happens."),
		blue.Render("Quick Start:"),
		blue.Render("stashq auth login"),
		blue.Render("stashq watch"),
		blue.Render("stashq job get <id>"),
		blue.Render("Diagnostics:"),
		blue.Render("stashq doctor"),
		blue.Render("stashq ping"),
		blue.Render("Docs: "),
		blue.Render("Help: "),
	)
}
