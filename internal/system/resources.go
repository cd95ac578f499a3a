package system

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const GiB = 1 << 30

// Resources is a snapshot of host capacity.
type Resources struct {
	LogicalCPUs     int
	TotalMemory     uint64
	AvailableMemory uint64
}

func (r Resources) AvailableGiB() float64 {
	return float64(r.AvailableMemory) / GiB
}

func (r Resources) String() string {
	return fmt.Sprintf("%d CPUs, %.1f/%.1f GiB available", r.LogicalCPUs, r.AvailableGiB(), float64(r.TotalMemory)/GiB)
}

// ProbeResources reads CPU and memory figures from the host.
func ProbeResources(ctx context.Context) (Resources, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Resources{}, fmt.Errorf("read memory: %w", err)
	}

	cpus, err := cpu.CountsWithContext(ctx, true)
	if err != nil || cpus <= 0 {
		cpus = runtime.NumCPU()
	}

	return Resources{
		LogicalCPUs:     cpus,
		TotalMemory:     vm.Total,
		AvailableMemory: vm.Available,
	}, nil
}

// HasNVIDIA reports whether an NVIDIA accelerator is visible, via the
// device node or nvidia-smi.
func HasNVIDIA(ctx context.Context) bool {
	if _, err := os.Stat("/dev/nvidia0"); err == nil {
		return true
	}
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		return false
	}
	out, err := exec.CommandContext(ctx, "nvidia-smi", "-L").Output()
	return err == nil && len(out) > 0
}
