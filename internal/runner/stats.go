package runner

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a point-in-time resource sample of one tracked process.
type Stats struct {
	Alive      bool    `json:"alive"`
	PID        int     `json:"pid,omitempty"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
}

// Stats samples the identified process. A tracked run whose process has
// already exited reports Alive: false rather than an error; only an unknown
// id errors.
func (l *Local) Stats(processID string) (Stats, error) {
	l.mu.Lock()
	r, ok := l.runs[processID]
	l.mu.Unlock()
	if !ok {
		return Stats{}, fmt.Errorf("%w: %s", ErrUnknownProcess, processID)
	}

	proc := r.process()
	if proc == nil || exitedAlready(r) {
		return Stats{}, nil
	}

	s := Stats{Alive: true, PID: proc.Pid}
	p, err := process.NewProcess(int32(proc.Pid))
	if err != nil {
		// Raced a natural exit between the registry lookup and the sample.
		return Stats{}, nil
	}
	if cpu, err := p.CPUPercent(); err == nil {
		s.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		s.MemoryRSS = mem.RSS
	}
	return s, nil
}
