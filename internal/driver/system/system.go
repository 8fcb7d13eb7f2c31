// Package system provides host health resources: CPU load, memory and disk
// use, uptime and the primary IP address.
package system

import (
	"context"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	gocpu "github.com/shirou/gopsutil/v4/cpu"
	godisk "github.com/shirou/gopsutil/v4/disk"
	gohost "github.com/shirou/gopsutil/v4/host"
	goload "github.com/shirou/gopsutil/v4/load"
	gomem "github.com/shirou/gopsutil/v4/mem"
	gonet "github.com/shirou/gopsutil/v4/net"

	"github.com/nerrad567/gray-logic-sync/internal/resource"
)

// System call wrappers for testing
var (
	cpuPercent    = gocpu.PercentWithContext
	loadAvg       = goload.AvgWithContext
	virtualMemory = gomem.VirtualMemoryWithContext
	diskUsage     = godisk.UsageWithContext
	hostUptime    = gohost.UptimeWithContext
	netInterfaces = gonet.InterfacesWithContext
)

// readTimeout bounds one system call.
const readTimeout = 5 * time.Second

// Config configures the system resources.
type Config struct {
	// Prefix is prepended to every resource name, usually the hostname.
	Prefix string

	// DiskPath is the mount point whose use is reported. Defaults to "/".
	DiskPath string

	// Poll is the number of cache ticks between reads.
	Poll int

	Group []string
}

// Resources returns the system resources described by cfg.
func Resources(cfg Config) []resource.Resource {
	if cfg.DiskPath == "" {
		cfg.DiskPath = "/"
	}
	if len(cfg.Group) == 0 {
		cfg.Group = []string{"System"}
	}
	meta := func(name, typ, label string) resource.Meta {
		return resource.Meta{
			Name:  cfg.Prefix + name,
			Type:  typ,
			Label: label,
			Group: cfg.Group,
			Poll:  cfg.Poll,
		}
	}

	return []resource.Resource{
		resource.NewSensor(meta("CpuLoad", "%", "CPU load"), cpuLoad),
		resource.NewSensor(meta("LoadAvg", "load", "Load average"), loadAverage),
		resource.NewSensor(meta("MemUsage", "%", "Memory use"), memoryUse),
		resource.NewSensor(meta("DiskUsage", "%", "Disk use "+cfg.DiskPath), func(ctx context.Context) (any, error) {
			return diskUse(ctx, cfg.DiskPath)
		}),
		resource.NewSensor(meta("Uptime", "seconds", "Uptime"), uptime),
		resource.NewSensor(meta("IpAddr", "ipAddr", "IP address"), ipAddr),
	}
}

func cpuLoad(ctx context.Context) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	// A zero interval compares against the previous call.
	percentages, err := cpuPercent(ctx, 0, false)
	if err != nil {
		return nil, failed("cpu load", err)
	}
	if len(percentages) == 0 {
		return nil, nil
	}
	return round1(min(max(percentages[0], 0), 100)), nil
}

func loadAverage(ctx context.Context) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	avg, err := loadAvg(ctx)
	if err != nil {
		return nil, failed("load average", err)
	}
	return math.Round(avg.Load1*100) / 100, nil
}

func memoryUse(ctx context.Context) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	stats, err := virtualMemory(ctx)
	if err != nil {
		return nil, failed("memory stats", err)
	}
	return round1(stats.UsedPercent), nil
}

func diskUse(ctx context.Context, path string) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	usage, err := diskUsage(ctx, path)
	if err != nil {
		return nil, failed("disk usage "+path, err)
	}
	return round1(usage.UsedPercent), nil
}

func uptime(ctx context.Context) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	secs, err := hostUptime(ctx)
	if err != nil {
		return nil, failed("uptime", err)
	}
	return int64(secs), nil
}

// ipAddr returns the first IPv4 address of an interface that is up and not
// a loopback.
func ipAddr(ctx context.Context) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	ifaces, err := netInterfaces(ctx)
	if err != nil {
		return nil, failed("interfaces", err)
	}
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			ip, _, err := net.ParseCIDR(a.Addr)
			if err != nil {
				ip = net.ParseIP(a.Addr)
			}
			if ip != nil && ip.To4() != nil && !ip.IsLoopback() {
				return ip.String(), nil
			}
		}
	}
	return nil, nil
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func failed(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", resource.ErrReadFailed, what, err)
}
