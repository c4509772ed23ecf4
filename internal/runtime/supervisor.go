package runtime

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mdufaud/sihdgo/internal/device"
	"github.com/mdufaud/sihdgo/internal/logging"
)

// Runnable is a component with a goroutine of its own to run for the
// supervised lifetime of the tree (a bare Scheduler, for instance).
// Runnables are registered explicitly with AddRunnable; the Supervisor
// does not look for them in the tree.
type Runnable interface {
	Run(ctx context.Context) error
}

// Supervisor coordinates the lifecycle of a root component and every
// Runnable registered with AddRunnable: Run brings the whole tree up,
// launches each Runnable's goroutine under one errgroup, and blocks
// until either the context is cancelled or one of them returns an error,
// stopping the tree on the way out.
type Supervisor struct {
	root      device.Component
	runnables []namedRunnable
}

type namedRunnable struct {
	name string
	r    Runnable
}

// NewSupervisor wraps root. Call AddRunnable for every goroutine-bearing
// component the tree contains (a Player's own context/goroutines are
// started by the Player itself; AddRunnable is for components, like a
// bare Scheduler, that this package owns directly).
func NewSupervisor(root device.Component) *Supervisor {
	return &Supervisor{root: root}
}

// AddRunnable registers a goroutine to run for the supervised lifetime of
// the tree, under the name used in shutdown logging.
func (s *Supervisor) AddRunnable(name string, r Runnable) {
	s.runnables = append(s.runnables, namedRunnable{name: name, r: r})
}

// Run brings the tree up (Setup/Init/Start) and then blocks running every
// registered Runnable until ctx is cancelled or one of them fails,
// stopping and resetting the tree before returning.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.root.Setup() {
		return errSupervisor("setup failed")
	}
	if !s.root.Init() {
		return errSupervisor("init failed")
	}
	if !s.root.Start() {
		return errSupervisor("start failed")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-groupCtx.Done()
		return nil
	})
	for _, nr := range s.runnables {
		nr := nr
		group.Go(func() error {
			err := nr.r.Run(groupCtx)
			if err != nil {
				logging.Log.Error("runnable exited with error", "name", nr.name, "error", err)
			}
			return err
		})
	}

	err := group.Wait()

	if !s.root.Stop() {
		logging.Log.Warn("stop reported failure during shutdown")
	}
	s.root.Reset()

	return err
}

type errSupervisor string

func (e errSupervisor) Error() string { return "runtime: " + string(e) }
