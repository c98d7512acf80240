package process

// ProcessState is the scheduler state letter reported by the kernel.
type ProcessState string

const (
	ProcessRunning    ProcessState = "R" // Running
	ProcessSleeping   ProcessState = "S" // Sleeping in an interruptible wait
	ProcessWaiting    ProcessState = "D" // Waiting in uninterruptible disk sleep
	ProcessZombie     ProcessState = "Z" // Zombie
	ProcessStopped    ProcessState = "T" // Stopped (on a signal)
	ProcessTracingStp ProcessState = "t" // Tracing stop
	ProcessDead       ProcessState = "X" // Dead
	ProcessIdle       ProcessState = "I" // Idle kernel thread
	ProcessUnknown    ProcessState = "?"
)

// IsGone reports whether the state means the target will never run again.
func (s ProcessState) IsGone() bool {
	return s == ProcessZombie || s == ProcessDead
}

// IsStopped reports whether the target is frozen by a signal or a tracer.
func (s ProcessState) IsStopped() bool {
	return s == ProcessStopped || s == ProcessTracingStp
}
