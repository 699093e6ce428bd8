package version

import (
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"trafficstats-agent/internal/config"
)

// Get describes the running agent. Host details are best effort.
func Get(cfg config.Config, bootID string, platformSupported bool) *GetVersionResponse {
	resp := &GetVersionResponse{
		NodeID:            cfg.NodeID,
		BootID:            bootID,
		AgentVersion:      cfg.AgentVersion,
		StreamMode:        string(cfg.StreamMode),
		PlatformSupported: platformSupported,
		CheckedAtUnix:     time.Now().UTC().Unix(),
	}
	if info, err := host.Info(); err == nil {
		resp.OS = info.OS
		resp.Platform = info.Platform
		resp.KernelVersion = info.KernelVersion
	}
	return resp
}
