package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"plansync/internal/adapters/editor"
	"plansync/internal/adapters/tui"
	"plansync/internal/application"
	"plansync/internal/bootstrap"
	"plansync/internal/config"
	"plansync/internal/domain"
	"plansync/internal/logging"
)

func main() {
	repoFlag := flag.String("repo", ".", "path to the git repository")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: plansync-review [--repo dir] [team/release]")
		flag.PrintDefaults()
	}
	flag.Parse()

	var target domain.Target
	if flag.NArg() > 0 {
		t, err := application.ParseTarget(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		target = t
	}

	if err := run(*repoFlag, target); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(repoDir string, target domain.Target) error {
	cfg, err := config.Load(repoDir)
	if err != nil {
		return err
	}

	// The alternate screen owns the terminal; only warnings get through.
	logger := logging.Init("plansync-review", logging.Console, "warn")

	rt, err := bootstrap.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	app := tui.NewApp(tui.Options{
		Engine:  rt.Orchestrator,
		Target:  target,
		Repo:    rt.Repo,
		Editor:  editor.NewOpener(),
		RepoDir: cfg.RepoDir,
	})

	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
