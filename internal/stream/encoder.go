package stream

import (
	"context"
	"encoding/json"

	"trafficstats-agent/internal/model"
)

type Sink interface {
	SendSnapshot(ctx context.Context, s model.TrafficSnapshot) error
	Close(ctx context.Context) error
}

type SnapshotFrame struct {
	NodeID        string                `json:"node_id"`
	BootID        string                `json:"boot_id"`
	TimestampUnix int64                 `json:"timestamp_unix"`
	Snapshot      model.TrafficSnapshot `json:"snapshot"`
}

func NewSnapshotFrame(s model.TrafficSnapshot) SnapshotFrame {
	return SnapshotFrame{NodeID: s.NodeID, BootID: s.BootID, TimestampUnix: s.TimestampUnix, Snapshot: s}
}

func EncodeEnvelope(e model.Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// JSONCodec lets gRPC carry plain Go structs without generated protobufs.
type JSONCodec struct{}

func (JSONCodec) Name() string {
	return "json"
}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
