package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"specbook/internal/adapters/editor"
	"specbook/internal/adapters/tui"
	"specbook/internal/bootstrap"
	"specbook/internal/config"
)

func main() {
	workspaceFlag := flag.String("workspace", config.Workspace(), "path to the workspace")
	providerFlag := flag.String("provider", "", "AI provider (claude-cli or anthropic), overrides config")
	modelFlag := flag.String("model", "", "model name, overrides config")
	flag.Parse()

	ws, err := bootstrap.Open(*workspaceFlag,
		bootstrap.WithProvider(*providerFlag),
		bootstrap.WithModel(*modelFlag),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	app := tui.NewApp(ws.Scanner, ws.Tree, ws.Store, editor.NewOpener(ws.Config.Workspace))

	p := tea.NewProgram(app, tea.WithAltScreen())

	_, err = p.Run()
	if cerr := ws.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
