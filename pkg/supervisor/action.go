package supervisor

// Action names one of the four lifecycle actions.
type Action int

const (
	ActionStartUp Action = iota
	ActionShutDown
	ActionRestart
	ActionTerminate

	actionCount
)

func (a Action) String() string {
	switch a {
	case ActionStartUp:
		return "startUp"
	case ActionShutDown:
		return "shutDown"
	case ActionRestart:
		return "restart"
	case ActionTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Callback receives the result of an action. It is called exactly once.
type Callback[C any] func(err error, client C)

// Handler performs one lifecycle action for a concrete resource. It receives
// the supervisor, the current client handle and a completion callback that
// must be called exactly once. Handlers run on the supervisor's executor and
// must hand blocking work to another goroutine.
type Handler[C any] func(s *Supervisor[C], client C, done Callback[C])

// Adaptor binds a resource type to the supervisor. Every handler is optional.
// Without Restart the supervisor composes ShutDown and StartUp.
type Adaptor[C any] struct {
	StartUp   Handler[C]
	ShutDown  Handler[C]
	Restart   Handler[C]
	Terminate Handler[C]
}

func (a Adaptor[C]) handler(action Action) Handler[C] {
	switch action {
	case ActionStartUp:
		return a.StartUp
	case ActionShutDown:
		return a.ShutDown
	case ActionRestart:
		return a.Restart
	case ActionTerminate:
		return a.Terminate
	default:
		return nil
	}
}
