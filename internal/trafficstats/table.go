package trafficstats

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownMethod = errors.New("unknown method")
	ErrArity         = errors.New("wrong number of arguments")
)

const (
	MethodMobileTxPackets = "getMobileTxPackets"
	MethodMobileRxPackets = "getMobileRxPackets"
	MethodMobileTxBytes   = "getMobileTxBytes"
	MethodMobileRxBytes   = "getMobileRxBytes"
	MethodTotalTxPackets  = "getTotalTxPackets"
	MethodTotalRxPackets  = "getTotalRxPackets"
	MethodTotalTxBytes    = "getTotalTxBytes"
	MethodTotalRxBytes    = "getTotalRxBytes"
	MethodUIDTxBytes      = "getUidTxBytes"
	MethodUIDRxBytes      = "getUidRxBytes"
)

type MethodDesc struct {
	Name     string `json:"name"`
	TakesUID bool   `json:"takes_uid"`
}

type entry struct {
	desc  MethodDesc
	noArg func() int64
	byUID func(uid int32) int64
}

// Table is the fixed set of operations handed to a bridge. It is built once
// and never modified.
type Table struct {
	order   []string
	entries map[string]entry
}

func NewTable(s *Stats) *Table {
	t := &Table{entries: make(map[string]entry, 10)}
	t.addNoArg(MethodMobileTxPackets, s.MobileTxPackets)
	t.addNoArg(MethodMobileRxPackets, s.MobileRxPackets)
	t.addNoArg(MethodMobileTxBytes, s.MobileTxBytes)
	t.addNoArg(MethodMobileRxBytes, s.MobileRxBytes)
	t.addNoArg(MethodTotalTxPackets, s.TotalTxPackets)
	t.addNoArg(MethodTotalRxPackets, s.TotalRxPackets)
	t.addNoArg(MethodTotalTxBytes, s.TotalTxBytes)
	t.addNoArg(MethodTotalRxBytes, s.TotalRxBytes)
	t.addUID(MethodUIDTxBytes, s.UIDTxBytes)
	t.addUID(MethodUIDRxBytes, s.UIDRxBytes)
	return t
}

func (t *Table) addNoArg(name string, fn func() int64) {
	t.order = append(t.order, name)
	t.entries[name] = entry{desc: MethodDesc{Name: name}, noArg: fn}
}

func (t *Table) addUID(name string, fn func(int32) int64) {
	t.order = append(t.order, name)
	t.entries[name] = entry{desc: MethodDesc{Name: name, TakesUID: true}, byUID: fn}
}

// Methods lists the operations in registration order.
func (t *Table) Methods() []MethodDesc {
	out := make([]MethodDesc, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.entries[name].desc)
	}
	return out
}

func (t *Table) Lookup(name string) (MethodDesc, bool) {
	e, ok := t.entries[name]
	return e.desc, ok
}

// Invoke calls name with args. The error only reports misuse of the table;
// unavailable counters are still returned as -1.
func (t *Table) Invoke(name string, args ...int32) (int64, error) {
	e, ok := t.entries[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
	if e.desc.TakesUID {
		if len(args) != 1 {
			return -1, fmt.Errorf("%w: %s takes a uid, got %d args", ErrArity, name, len(args))
		}
		return e.byUID(args[0]), nil
	}
	if len(args) != 0 {
		return -1, fmt.Errorf("%w: %s takes no args, got %d", ErrArity, name, len(args))
	}
	return e.noArg(), nil
}
