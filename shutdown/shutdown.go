package shutdown

import (
	"container/heap"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/flanksource/commons/logger"
)

// Hooks run in ascending priority order.
const (
	PriorityProcesses  = 0
	PriorityDefault    = 100
	PriorityWorkspaces = 200
	PriorityCritical   = 400
)

// ExitInterrupted is the exit status used after a signal-triggered shutdown.
const ExitInterrupted = 130

type Hook struct {
	label    string
	priority int
	fn       func()
	seq      int
	index    int // for heap interface
}

type HookHeap []*Hook

func (h HookHeap) Len() int { return len(h) }
func (h HookHeap) Less(i, j int) bool {
	if h[i].priority == h[j].priority {
		return h[i].seq < h[j].seq
	}
	return h[i].priority < h[j].priority
}
func (h HookHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *HookHeap) Push(x any) {
	n := len(*h)
	item := x.(*Hook)
	item.index = n
	*h = append(*h, item)
}

func (h *HookHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

var (
	hooks    HookHeap
	hooksMux sync.Mutex
	seq      int
)

func AddHook(label string, fn func()) {
	AddHookWithPriority(label, PriorityDefault, fn)
}

func AddHookWithPriority(label string, priority int, fn func()) {
	hooksMux.Lock()
	defer hooksMux.Unlock()

	seq++
	heap.Push(&hooks, &Hook{
		label:    label,
		priority: priority,
		fn:       fn,
		seq:      seq,
	})
}

// Pending returns the number of hooks not yet executed.
func Pending() int {
	hooksMux.Lock()
	defer hooksMux.Unlock()
	return hooks.Len()
}

// Shutdown runs and discards every registered hook. A panicking hook does not stop the others.
func Shutdown() {
	hooksMux.Lock()
	defer hooksMux.Unlock()

	if len(hooks) == 0 {
		return
	}

	logger.Debugf("Executing %d shutdown hooks", len(hooks))

	for hooks.Len() > 0 {
		hook := heap.Pop(&hooks).(*Hook)
		logger.Debugf("Executing shutdown hook: %s (priority=%d)", hook.label, hook.priority)

		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Panic in shutdown hook %s: %v", hook.label, r)
				}
			}()
			hook.fn()
		}()
	}
}

// WithSignals returns a context cancelled on SIGINT or SIGTERM. The first signal cancels the
// context and runs the hooks; a second one exits immediately.
func WithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			_, _ = fmt.Fprintf(os.Stderr, "\nReceived %s - stopping fixtures...\n", sig)
			_, _ = fmt.Fprintf(os.Stderr, "   Press Ctrl+C again to force immediate exit\n\n")
			cancel()

			go func() {
				<-sigChan
				_, _ = fmt.Fprintf(os.Stderr, "\nForce exit\n")
				os.Exit(ExitInterrupted)
			}()

			Shutdown()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
