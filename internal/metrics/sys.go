package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

var processStart = time.Now()

// SysHealth is a snapshot of the client process and its data directory.
type SysHealth struct {
	AllocMB      uint64
	SysMB        uint64
	NumGC        uint32
	Goroutines   int
	Uptime       time.Duration
	GoVersion    string
	DataDiskSize string
}

// GetSysHealth collects real-time health data.
func GetSysHealth(dataPath string) SysHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SysHealth{
		AllocMB:      m.Alloc / 1024 / 1024,
		SysMB:        m.Sys / 1024 / 1024,
		NumGC:        m.NumGC,
		Goroutines:   runtime.NumGoroutine(),
		Uptime:       time.Since(processStart).Truncate(time.Second),
		GoVersion:    runtime.Version(),
		DataDiskSize: dirSize(dataPath),
	}
}

func (h SysHealth) String() string {
	return fmt.Sprintf("mem %d MB (sys %d MB), gc %d, goroutines %d, up %s, data %s, %s",
		h.AllocMB, h.SysMB, h.NumGC, h.Goroutines, h.Uptime, h.DataDiskSize, h.GoVersion)
}

func dirSize(path string) string {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})

	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
