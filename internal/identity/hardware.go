package identity

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/DimaJoyti/node-agent/pkg/logger"
)

// GPU is one vendor-reported accelerator record. Populated via nvidia-smi
// when present; left empty otherwise (spec.md §4.1).
type GPU struct {
	Index          int     `json:"index"`
	Name           string  `json:"name"`
	Driver         string  `json:"driver"`
	VRAMTotalMB    int64   `json:"vram_total_mb"`
	VRAMUsedMB     int64   `json:"vram_used_mb"`
	VRAMFreeMB     int64   `json:"vram_free_mb"`
	UtilGPUPercent float64 `json:"util_gpu_percent"`
	UtilMemPercent float64 `json:"util_mem_percent"`
	TempC          float64 `json:"temp_c"`
	PowerW         float64 `json:"power_w"`
	PowerLimitW    float64 `json:"power_limit_w"`
	Pstate         string  `json:"pstate"`
}

// Hardware is a point-in-time inventory snapshot, refreshed on each C2
// probe cycle.
type Hardware struct {
	CPUModel        string  `json:"cpu_model"`
	PhysicalCores   int     `json:"physical_cores"`
	LogicalCores    int     `json:"logical_cores"`
	CPUCurrentMHz   float64 `json:"cpu_current_mhz"`
	CPUMaxMHz       float64 `json:"cpu_max_mhz"`
	RAMTotalMB      int64   `json:"ram_total_mb"`
	RAMAvailableMB  int64   `json:"ram_available_mb"`
	RAMUsedMB       int64   `json:"ram_used_mb"`
	SwapTotalMB     int64   `json:"swap_total_mb"`
	SwapUsedMB      int64   `json:"swap_used_mb"`
	GPUs            []GPU   `json:"gpus"`
	DiskTotalGB     float64 `json:"disk_total_gb"`
	DiskUsedGB      float64 `json:"disk_used_gb"`
	DiskFreeGB      float64 `json:"disk_free_gb"`
	DiskUsedPercent float64 `json:"disk_used_percent"`
}

// rootVolume is probed for disk usage; "/" is correct on Linux/macOS and
// gopsutil accepts it as a best-effort path on Windows too.
const rootVolume = "/"

// CollectHardware gathers a best-effort hardware snapshot. Every field
// that fails to probe is left at its zero value rather than aborting the
// whole snapshot — this mirrors the "Unknown"-on-failure guidance in
// spec.md §4.1.
func CollectHardware(ctx context.Context, log *logger.Logger) Hardware {
	hw := Hardware{CPUModel: "Unknown"}

	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		hw.CPUModel = infos[0].ModelName
		hw.CPUMaxMHz = infos[0].Mhz
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		hw.LogicalCores = n
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		hw.PhysicalCores = n
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		// Approximate current clock utilization signal; exact current MHz
		// is not exposed uniformly across platforms by gopsutil.
		hw.CPUCurrentMHz = hw.CPUMaxMHz * pct[0] / 100
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		hw.RAMTotalMB = int64(vm.Total / (1024 * 1024))
		hw.RAMAvailableMB = int64(vm.Available / (1024 * 1024))
		hw.RAMUsedMB = int64(vm.Used / (1024 * 1024))
	}
	if sm, err := mem.SwapMemoryWithContext(ctx); err == nil {
		hw.SwapTotalMB = int64(sm.Total / (1024 * 1024))
		hw.SwapUsedMB = int64(sm.Used / (1024 * 1024))
	}

	if du, err := disk.UsageWithContext(ctx, rootVolume); err == nil {
		const gb = 1024 * 1024 * 1024
		hw.DiskTotalGB = float64(du.Total) / gb
		hw.DiskUsedGB = float64(du.Used) / gb
		hw.DiskFreeGB = float64(du.Free) / gb
		hw.DiskUsedPercent = du.UsedPercent
	}

	hw.GPUs = collectGPUs(ctx, log)
	return hw
}

// collectGPUs shells out to nvidia-smi, the vendor query tool, when
// present. Returns an empty slice (never nil, to keep JSON output
// `"gpus": []` rather than `null`) when no GPU tooling is available.
func collectGPUs(ctx context.Context, log *logger.Logger) []GPU {
	gpus := []GPU{}

	fields := "index,name,driver_version,memory.total,memory.used,memory.free," +
		"utilization.gpu,utilization.memory,temperature.gpu,power.draw,power.limit,pstate"
	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu="+fields, "--format=csv,noheader,nounits")

	out, err := cmd.Output()
	if err != nil {
		// No NVIDIA GPU, no driver, or tool not on PATH: not an error
		// condition for the agent, just an empty GPU list.
		return gpus
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 12 {
			continue
		}

		gpu := GPU{
			Index:          atoi(parts[0]),
			Name:           parts[1],
			Driver:         parts[2],
			VRAMTotalMB:    int64(atoi(parts[3])),
			VRAMUsedMB:     int64(atoi(parts[4])),
			VRAMFreeMB:     int64(atoi(parts[5])),
			UtilGPUPercent: atof(parts[6]),
			UtilMemPercent: atof(parts[7]),
			TempC:          atof(parts[8]),
			PowerW:         atof(parts[9]),
			PowerLimitW:    atof(parts[10]),
			Pstate:         parts[11],
		}
		gpus = append(gpus, gpu)
	}

	if log != nil && len(gpus) > 0 {
		log.Debug("collected %d GPU(s) via nvidia-smi", len(gpus))
	}
	return gpus
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func atof(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
