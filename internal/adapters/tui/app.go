package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"plansync/internal/adapters/tui/views"
	"plansync/internal/application/commands"
	"plansync/internal/domain"
	"plansync/internal/ports"
)

// ViewState represents the current view
type ViewState int

const (
	ViewLog ViewState = iota
	ViewEntry
	ViewConfirm
	ViewTarget
	ViewHelp
)

// Options wires the review app
type Options struct {
	Engine commands.Engine
	Target domain.Target

	// Repo and Editor enable editing the plan document; Editor may be nil
	Repo    ports.PlanRepository
	Editor  ports.EditorOpener
	RepoDir string
}

// App is the review TUI: the audit log of one plan, the details of
// each entry and the pull and push operations.
type App struct {
	opts Options

	state   ViewState
	log     *views.LogModel
	entry   *views.EntryModel
	confirm *views.ConfirmationModel
	target  *views.TargetModel
	help    *views.HelpModel
}

// NewApp creates a new review application
func NewApp(opts Options) *App {
	return &App{
		opts:    opts,
		state:   ViewLog,
		log:     views.NewLogModel(opts.Engine, opts.Target),
		entry:   views.NewEntryModel(),
		confirm: views.NewConfirmationModel(),
		target:  views.NewTargetModel(),
		help:    views.NewHelpModel(),
	}
}

// State returns the current view
func (a *App) State() ViewState {
	return a.state
}

// Init loads the log, or asks for a target when none was given
func (a *App) Init() tea.Cmd {
	if a.opts.Target == (domain.Target{}) {
		a.state = ViewTarget
		return a.target.Open("")
	}
	return a.log.Init()
}

// Update handles messages for the application
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.log.SetSize(msg.Width, msg.Height)
		a.entry.SetSize(msg.Width, msg.Height)
		a.confirm.SetSize(msg.Width, msg.Height)
		a.target.SetSize(msg.Width, msg.Height)
		a.help.SetSize(msg.Width, msg.Height)
		return a, nil

	case views.SwitchToLogMsg:
		a.state = ViewLog
		return a, nil

	case views.SwitchToEntryMsg:
		a.state = ViewEntry
		a.entry.SetEntry(msg.Entry)
		return a, nil

	case views.SwitchToConfirmMsg:
		a.state = ViewConfirm
		a.confirm.SetOperation(msg.Op, msg.Target)
		return a, nil

	case views.SwitchToTargetMsg:
		a.state = ViewTarget
		return a, a.target.Open(a.log.Target().String())

	case views.SwitchToHelpMsg:
		a.state = ViewHelp
		return a, nil

	case views.TargetChangedMsg:
		a.state = ViewLog
		return a, a.log.SetTarget(msg.Target)

	case views.RunOpMsg:
		a.state = ViewLog
		a.log.SetMessage("running "+string(msg.Op)+"…", false)
		return a, a.run(msg)

	case views.OpFinishedMsg:
		switch {
		case msg.Result != nil:
			a.log.SetMessage(msg.Result.Message, !msg.Result.Succeeded())
		case msg.Err != nil:
			a.log.SetMessage(msg.Err.Error(), true)
		}
		return a, a.log.Reload()

	case views.OpenEditorMsg:
		return a, a.openEditor(msg.Target)

	case editorFinishedMsg:
		if msg.err != nil {
			a.log.SetMessage(msg.err.Error(), true)
		}
		return a, a.log.Reload()
	}

	var cmd tea.Cmd
	switch a.state {
	case ViewEntry:
		_, cmd = a.entry.Update(msg)
	case ViewConfirm:
		_, cmd = a.confirm.Update(msg)
	case ViewTarget:
		_, cmd = a.target.Update(msg)
	case ViewHelp:
		_, cmd = a.help.Update(msg)
	default:
		_, cmd = a.log.Update(msg)
	}
	return a, cmd
}

func (a *App) run(msg views.RunOpMsg) tea.Cmd {
	engine := a.opts.Engine
	return func() tea.Msg {
		var cmd *commands.SyncCommand
		if msg.Op == domain.OpPush {
			cmd = commands.NewPushCommand(engine, msg.Target.String(), false)
		} else {
			cmd = commands.NewPullCommand(engine, msg.Target.String())
		}
		res, err := cmd.Execute(context.Background())
		return views.OpFinishedMsg{Result: res, Err: err}
	}
}

type editorFinishedMsg struct{ err error }

func (a *App) openEditor(target domain.Target) tea.Cmd {
	if a.opts.Editor == nil || a.opts.Repo == nil {
		a.log.SetMessage("editing is not available", true)
		return nil
	}

	edit := commands.NewEditCommand(a.opts.Repo, a.opts.Editor, a.opts.RepoDir, target.String())
	_, cmd, err := edit.Prepare(context.Background())
	if err != nil {
		return func() tea.Msg {
			return editorFinishedMsg{err: err}
		}
	}

	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return editorFinishedMsg{err: err}
	})
}

// View renders the current view
func (a *App) View() string {
	switch a.state {
	case ViewEntry:
		return a.entry.View()
	case ViewConfirm:
		return a.confirm.View()
	case ViewTarget:
		return a.target.View()
	case ViewHelp:
		return a.help.View()
	default:
		return a.log.View()
	}
}
