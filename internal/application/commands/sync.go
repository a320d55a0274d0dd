package commands

import (
	"context"
	"fmt"

	"plansync/internal/application"
	"plansync/internal/application/orchestrator"
	"plansync/internal/domain"
)

// Engine is the sync engine driven by the commands. It is implemented
// by *orchestrator.Orchestrator.
type Engine interface {
	Init(ctx context.Context, target domain.Target) (*application.Result, error)
	Pull(ctx context.Context, target domain.Target) (*application.Result, error)
	Push(ctx context.Context, target domain.Target, opts orchestrator.PushOptions) (*application.Result, error)
	Resolve(ctx context.Context, target domain.Target) (*application.Result, error)
	Status(ctx context.Context, target domain.Target) (*orchestrator.StatusReport, error)
	History(ctx context.Context, target domain.Target, limit int) ([]domain.AuditEntry, error)
	Entry(ctx context.Context, id string) (*domain.AuditEntry, error)
}

var _ Engine = (*orchestrator.Orchestrator)(nil)

func parseTarget(raw string) (domain.Target, error) {
	if raw == "" {
		return domain.Target{}, &application.ValidationError{
			Field:   "target",
			Message: "target is required (team/release)",
		}
	}
	return application.ParseTarget(raw)
}

// SyncCommand runs one of init, pull, push or resolve for a target
type SyncCommand struct {
	engine Engine
	Op     domain.Operation
	Target string

	// ConfirmRemovals only applies to push
	ConfirmRemovals bool
}

// NewInitCommand creates a command initializing target
func NewInitCommand(engine Engine, target string) *SyncCommand {
	return &SyncCommand{engine: engine, Op: domain.OpInit, Target: target}
}

// NewPullCommand creates a command pulling target
func NewPullCommand(engine Engine, target string) *SyncCommand {
	return &SyncCommand{engine: engine, Op: domain.OpPull, Target: target}
}

// NewPushCommand creates a command pushing target
func NewPushCommand(engine Engine, target string, confirmRemovals bool) *SyncCommand {
	return &SyncCommand{engine: engine, Op: domain.OpPush, Target: target, ConfirmRemovals: confirmRemovals}
}

// NewResolveCommand creates a command marking target's conflicts resolved
func NewResolveCommand(engine Engine, target string) *SyncCommand {
	return &SyncCommand{engine: engine, Op: domain.OpResolve, Target: target}
}

// Validate checks the target and operation
func (c *SyncCommand) Validate() error {
	if _, err := parseTarget(c.Target); err != nil {
		return err
	}
	switch c.Op {
	case domain.OpInit, domain.OpPull, domain.OpPush, domain.OpResolve:
	default:
		return &application.ValidationError{
			Field:   "operation",
			Message: fmt.Sprintf("unknown operation: %s", c.Op),
		}
	}
	if c.ConfirmRemovals && c.Op != domain.OpPush {
		return &application.ValidationError{
			Field:   "confirmRemovals",
			Message: "only push can confirm removals",
		}
	}
	return nil
}

// Execute runs the operation. Conflicts and rejections come back as a
// result with a nil error; the result is non-nil whenever the engine
// was reached, failures included.
func (c *SyncCommand) Execute(ctx context.Context) (*application.Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	target, _ := parseTarget(c.Target)

	switch c.Op {
	case domain.OpInit:
		return c.engine.Init(ctx, target)
	case domain.OpPull:
		return c.engine.Pull(ctx, target)
	case domain.OpPush:
		return c.engine.Push(ctx, target, orchestrator.PushOptions{ConfirmRemovals: c.ConfirmRemovals})
	default:
		return c.engine.Resolve(ctx, target)
	}
}

// StatusCommand reports the state of a target
type StatusCommand struct {
	engine Engine
	Target string
}

// NewStatusCommand creates a new StatusCommand
func NewStatusCommand(engine Engine, target string) *StatusCommand {
	return &StatusCommand{engine: engine, Target: target}
}

// Validate checks the target
func (c *StatusCommand) Validate() error {
	_, err := parseTarget(c.Target)
	return err
}

// Execute runs the status command
func (c *StatusCommand) Execute(ctx context.Context) (*orchestrator.StatusReport, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	target, _ := parseTarget(c.Target)
	report, err := c.engine.Status(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}
	return report, nil
}

// DefaultLogLimit is how many entries the log shows without a limit
const DefaultLogLimit = 20

// LogResult contains the audit entries of a target, newest first
type LogResult struct {
	Target  domain.Target
	Entries []domain.AuditEntry
}

// LogCommand lists the audit log of a target
type LogCommand struct {
	engine Engine
	Target string
	Limit  int
}

// NewLogCommand creates a new LogCommand. A limit of zero selects
// DefaultLogLimit; a negative limit lists everything.
func NewLogCommand(engine Engine, target string, limit int) *LogCommand {
	return &LogCommand{engine: engine, Target: target, Limit: limit}
}

// Validate checks the target
func (c *LogCommand) Validate() error {
	_, err := parseTarget(c.Target)
	return err
}

// Execute runs the log command
func (c *LogCommand) Execute(ctx context.Context) (*LogResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	target, _ := parseTarget(c.Target)

	limit := c.Limit
	switch {
	case limit == 0:
		limit = DefaultLogLimit
	case limit < 0:
		limit = 0
	}
	entries, err := c.engine.History(ctx, target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return &LogResult{Target: target, Entries: entries}, nil
}

// ShowEntryCommand fetches one audit entry
type ShowEntryCommand struct {
	engine Engine
	ID     string
}

// NewShowEntryCommand creates a new ShowEntryCommand
func NewShowEntryCommand(engine Engine, id string) *ShowEntryCommand {
	return &ShowEntryCommand{engine: engine, ID: id}
}

// Validate checks the entry id
func (c *ShowEntryCommand) Validate() error {
	if c.ID == "" {
		return &application.ValidationError{
			Field:   "auditID",
			Message: "audit entry id is required",
		}
	}
	return nil
}

// Execute runs the show command
func (c *ShowEntryCommand) Execute(ctx context.Context) (*domain.AuditEntry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c.engine.Entry(ctx, c.ID)
}
