package model

type MetricType string

const MetricTypeTrafficSnapshot MetricType = "traffic_snapshot"

// Envelope is transport-agnostic framing for stream payloads.
type Envelope struct {
	Type          MetricType `json:"type"`
	NodeID        string     `json:"node_id"`
	TimestampUnix int64      `json:"timestamp_unix"`
	Payload       any        `json:"payload"`
}

// TrafficCounters holds one family of aggregate counters. -1 means the value
// was unavailable when sampled.
type TrafficCounters struct {
	TxPackets int64 `json:"tx_packets"`
	RxPackets int64 `json:"rx_packets"`
	TxBytes   int64 `json:"tx_bytes"`
	RxBytes   int64 `json:"rx_bytes"`
}

type UIDTraffic struct {
	UID     int32 `json:"uid"`
	RxBytes int64 `json:"rx_bytes"`
	TxBytes int64 `json:"tx_bytes"`
}

// TrafficSnapshot is a single fresh read of every counter. BootID changes on
// every agent start so consumers can tell a restart from a counter reset.
type TrafficSnapshot struct {
	NodeID        string          `json:"node_id"`
	BootID        string          `json:"boot_id"`
	TimestampUnix int64           `json:"timestamp_unix"`
	Mobile        TrafficCounters `json:"mobile"`
	Total         TrafficCounters `json:"total"`
	UIDs          []UIDTraffic    `json:"uids"`
}

func (s TrafficSnapshot) Envelope() Envelope {
	return Envelope{Type: MetricTypeTrafficSnapshot, NodeID: s.NodeID, TimestampUnix: s.TimestampUnix, Payload: s}
}
