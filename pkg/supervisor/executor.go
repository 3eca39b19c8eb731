package supervisor

import (
	"runtime/debug"
	"sync"

	"github.com/kart-io/logger/core"
)

// executor runs posted tasks one at a time in FIFO order. A drain goroutine
// is started when the first task arrives on an idle executor and exits once
// the mailbox is empty.
type executor struct {
	mu      sync.Mutex
	tasks   []func()
	running bool
	spawn   func(task func())
	log     core.Logger
}

func newExecutor(spawn func(task func()), log core.Logger) *executor {
	if spawn == nil {
		spawn = func(task func()) { go task() }
	}
	return &executor{
		spawn: spawn,
		log:   log,
	}
}

func (e *executor) post(task func()) {
	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	e.spawn(e.drain)
}

func (e *executor) drain() {
	for {
		e.mu.Lock()
		if len(e.tasks) == 0 {
			e.running = false
			e.mu.Unlock()
			return
		}
		task := e.tasks[0]
		e.tasks[0] = nil
		e.tasks = e.tasks[1:]
		e.mu.Unlock()

		e.run(task)
	}
}

func (e *executor) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorw("Supervisor task panicked",
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	task()
}
