package hooks

import (
	"fmt"
	"os"
)

// ProcessKiller terminates the agent process that invoked the hook.
type ProcessKiller interface {
	KillParent() error
}

type parentKiller struct{}

// NewParentKiller returns a ProcessKiller that sends SIGKILL to the parent process.
func NewParentKiller() ProcessKiller {
	return parentKiller{}
}

func (parentKiller) KillParent() error {
	ppid := os.Getppid()
	proc, err := os.FindProcess(ppid)
	if err != nil {
		return fmt.Errorf("failed to find parent process %d: %w", ppid, err)
	}
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("failed to kill parent process %d: %w", ppid, err)
	}
	return nil
}
