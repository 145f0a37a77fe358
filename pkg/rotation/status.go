package rotation

// Status is the lifecycle state of an Engine.
type Status int

const (
	StatusInitialized Status = iota
	StatusRunning
	StatusShuttingDown
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusInitialized:
		return "initialized"
	case StatusRunning:
		return "running"
	case StatusShuttingDown:
		return "shutting down"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
