package process

// ProcessInfo is one entry of a process listing.
type ProcessInfo struct {
	PID  ProcessID
	Name string
	Exe  string
}

// ProcessFinder maps a human-facing identifier to running processes.
type ProcessFinder interface {
	// FindProcessByPID finds a process by its PID
	FindProcessByPID(pid ProcessID) (*ProcessInfo, error)

	// FindProcessByName finds processes by their name, case-insensitive, with or without an .exe suffix
	FindProcessByName(name string) ([]ProcessInfo, error)

	// FindAllProcesses returns information about all running processes
	FindAllProcesses() ([]ProcessInfo, error)
}
