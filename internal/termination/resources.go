package termination

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// SampleUsage reads the current process's resident memory and accumulated
// CPU time. Readings are process-wide, so concurrent scopes observe a
// shared ceiling rather than per-scope attribution.
func SampleUsage(ctx context.Context) (Usage, error) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return Usage{}, err
	}

	var usage Usage
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		usage.MemoryBytes = mem.RSS
	}
	if times, err := p.TimesWithContext(ctx); err == nil && times != nil {
		usage.CPUTime = time.Duration((times.User + times.System) * float64(time.Second))
	}
	return usage, nil
}
