package pipeline

// State is the lifecycle position of a run.
type State int32

const (
	StateIdle State = iota
	StateEnumerating
	StateDraining
	StateFlushing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEnumerating:
		return "enumerating"
	case StateDraining:
		return "draining"
	case StateFlushing:
		return "flushing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}
