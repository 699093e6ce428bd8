package trafficstats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableMethods(t *testing.T) {
	tbl := NewTable(New(WithPlatformSupport(false)))
	methods := tbl.Methods()
	require.Len(t, methods, 10)
	assert.Equal(t, MethodMobileTxPackets, methods[0].Name)
	assert.Equal(t, MethodUIDRxBytes, methods[9].Name)

	var withUID int
	for _, m := range methods {
		if m.TakesUID {
			withUID++
		}
	}
	assert.Equal(t, 2, withUID)

	d, ok := tbl.Lookup(MethodUIDTxBytes)
	require.True(t, ok)
	assert.True(t, d.TakesUID)
}

func TestTableInvoke(t *testing.T) {
	h := newFakeHost(t)
	h.iface("rmnet0", map[Counter]string{RxPackets: "3\n"})
	h.iface("wlan0", map[Counter]string{RxPackets: "4\n"})
	h.uid(1000, "tcp_snd", "9\n")
	tbl := NewTable(h.stats())

	v, err := tbl.Invoke(MethodMobileRxPackets)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	v, err = tbl.Invoke(MethodTotalRxPackets)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	v, err = tbl.Invoke(MethodUIDTxBytes, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(9), v)

	v, err = tbl.Invoke(MethodUIDRxBytes, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)
}

func TestTableInvokeMisuse(t *testing.T) {
	tbl := NewTable(New(WithPlatformSupport(false)))

	_, err := tbl.Invoke("getEverything")
	assert.ErrorIs(t, err, ErrUnknownMethod)

	_, err = tbl.Invoke(MethodUIDRxBytes)
	assert.ErrorIs(t, err, ErrArity)

	_, err = tbl.Invoke(MethodTotalTxBytes, 1)
	assert.ErrorIs(t, err, ErrArity)
}
