package collector

import (
	"context"
	"fmt"
	"time"

	"trafficstats-agent/internal/model"
	"trafficstats-agent/internal/trafficstats"
)

type SnapshotCollector struct {
	table  *trafficstats.Table
	nodeID string
	bootID string
	uids   []int32
	now    func() time.Time
}

func NewSnapshotCollector(table *trafficstats.Table, nodeID, bootID string, uids []int32) *SnapshotCollector {
	return &SnapshotCollector{
		table:  table,
		nodeID: nodeID,
		bootID: bootID,
		uids:   append([]int32(nil), uids...),
		now:    time.Now,
	}
}

// Collect reads every counter afresh. Unavailable values stay -1.
func (c *SnapshotCollector) Collect(ctx context.Context) (model.TrafficSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.TrafficSnapshot{}, err
	}
	snap := model.TrafficSnapshot{
		NodeID:        c.nodeID,
		BootID:        c.bootID,
		TimestampUnix: c.now().UTC().Unix(),
		UIDs:          make([]model.UIDTraffic, 0, len(c.uids)),
	}

	var err error
	call := func(dst *int64, method string, args ...int32) {
		if err != nil {
			return
		}
		var v int64
		v, err = c.table.Invoke(method, args...)
		if err != nil {
			err = fmt.Errorf("collect %s: %w", method, err)
			return
		}
		*dst = v
	}

	call(&snap.Mobile.TxPackets, trafficstats.MethodMobileTxPackets)
	call(&snap.Mobile.RxPackets, trafficstats.MethodMobileRxPackets)
	call(&snap.Mobile.TxBytes, trafficstats.MethodMobileTxBytes)
	call(&snap.Mobile.RxBytes, trafficstats.MethodMobileRxBytes)
	call(&snap.Total.TxPackets, trafficstats.MethodTotalTxPackets)
	call(&snap.Total.RxPackets, trafficstats.MethodTotalRxPackets)
	call(&snap.Total.TxBytes, trafficstats.MethodTotalTxBytes)
	call(&snap.Total.RxBytes, trafficstats.MethodTotalRxBytes)
	for _, uid := range c.uids {
		u := model.UIDTraffic{UID: uid}
		call(&u.RxBytes, trafficstats.MethodUIDRxBytes, uid)
		call(&u.TxBytes, trafficstats.MethodUIDTxBytes, uid)
		snap.UIDs = append(snap.UIDs, u)
	}
	if err != nil {
		return model.TrafficSnapshot{}, err
	}
	return snap, nil
}
