package kernel

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosin-men/mosinOS/internal/board"
	"github.com/mosin-men/mosinOS/internal/console"
	"github.com/mosin-men/mosinOS/internal/fsbrowse"
	"github.com/mosin-men/mosinOS/internal/trap"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	profile := board.Profile{Name: "qemu", FreqHz: 65_000_000, ClintBase: 0x02000000, UartBase: 0x10013000}
	k, err := New(make([]byte, 64*1024), profile, &board.SimClint{}, &console.Loopback{}, fsbrowse.NullBrowser{}, zerolog.Nop())
	require.NoError(t, err)
	return k
}

func TestBootRearmsClint(t *testing.T) {
	k := newTestKernel(t)
	clint := k.Clint.(*board.SimClint)

	k.Boot()

	assert.Equal(t, clint.MTime+uint64(k.Profile.FreqHz)/board.TickHz, clint.MTimeCmp)
}

func TestTimerTrapTicksSchedulerAndRearms(t *testing.T) {
	k := newTestKernel(t)
	k.Boot()
	k.Spawn(256, 0x1000, 1, nil, "a")

	clint := k.Clint.(*board.SimClint)
	before := clint.MTimeCmp
	clint.Advance(1, k.Profile.FreqHz)

	mepc, halted := k.HandleTrap(uint32(0x80000000)|trap.CauseMTimer, 0, 0)

	assert.False(t, halted)
	assert.NotZero(t, mepc)
	require.NotNil(t, k.Sched.Current())
	assert.Equal(t, clint.MTime+uint64(k.Profile.FreqHz)/board.TickHz, clint.MTimeCmp,
		"timer trap should re-arm CLINT one tick past MTIME")
	assert.NotEqual(t, before, clint.MTimeCmp)
}

func TestUserEcallRoutesThroughSyscallLayer(t *testing.T) {
	k := newTestKernel(t)
	k.Boot()
	k.Spawn(256, 0x1000, 1, nil, "a")
	k.HandleTrap(uint32(0x80000000)|trap.CauseMTimer, 0, 0)
	require.NotNil(t, k.Sched.Current())

	k.Sched.Ctx[10] = 10 // NPROC
	_, halted := k.HandleTrap(trap.CauseUEcall, 0x1000, 0)

	assert.False(t, halted)
	assert.Equal(t, uint32(1), k.Sched.Ctx[10])
}

func TestMachineEcallSwitchesPrivilegeMode(t *testing.T) {
	k := newTestKernel(t)
	assert.Equal(t, PrivMachine, k.Mode())

	k.Sched.Ctx[10] = 0 // UMODE
	_, halted := k.HandleTrap(trap.CauseMEcall, 0x2000, 0)
	assert.False(t, halted)
	assert.Equal(t, PrivUser, k.Mode())

	k.Sched.Ctx[10] = 3 // MMODE
	_, halted = k.HandleTrap(trap.CauseMEcall, 0x2004, 0)
	assert.False(t, halted)
	assert.Equal(t, PrivMachine, k.Mode())
}

func TestFatalFaultHalts(t *testing.T) {
	k := newTestKernel(t)
	_, halted := k.HandleTrap(trap.CauseIllegalInst, 0x3000, 0xbad)
	assert.True(t, halted)
}
