package agent

import (
	"sync/atomic"
	"time"
)

type HealthStatus struct {
	sourceReadable  atomic.Bool
	streamConnected atomic.Bool
	lastSnapshotAt  atomic.Int64
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{}
}

func (h *HealthStatus) SetSourceReadable(ok bool) {
	h.sourceReadable.Store(ok)
}

func (h *HealthStatus) SetStreamConnected(ok bool) {
	h.streamConnected.Store(ok)
}

func (h *HealthStatus) MarkSnapshot(ts time.Time) {
	h.lastSnapshotAt.Store(ts.UnixNano())
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"source_readable":  h.sourceReadable.Load(),
		"stream_connected": h.streamConnected.Load(),
	}
	if v := h.lastSnapshotAt.Load(); v > 0 {
		out["last_snapshot_at"] = time.Unix(0, v).UTC()
	}
	return out
}
