package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdleSentinels(t *testing.T) {
	stack := make([]byte, 128)
	p := NewIdle(3, stack, 0x2000, 2, 7, "init")

	assert.Equal(t, int32(3), p.Pid)
	assert.Equal(t, uint32(0x2000), p.PC)
	assert.Equal(t, uint32(2), p.QM)
	assert.Equal(t, uint32(7), p.Vruntime)
	assert.Equal(t, uint32(128), p.StackSize)
	assert.Equal(t, "init", p.Name)

	assert.False(t, p.Kill)
	assert.Equal(t, int32(-1), p.WaitPid)
	assert.Equal(t, int32(0), p.Sleep)
	assert.Equal(t, StateReady, p.State())
}

func TestStateDerivation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*PCB)
		want    State
		wantStr string
	}{
		{"fresh pcb is ready", func(*PCB) {}, StateReady, "ready"},
		{"running", func(p *PCB) { p.SetRunning(true) }, StateRunning, "running"},
		{"sleeping", func(p *PCB) { p.Sleep = 100 }, StateSleeping, "sleeping"},
		{"waiting", func(p *PCB) { p.WaitPid = 4 }, StateWaiting, "waiting"},
		{"killed", func(p *PCB) { p.Kill = true }, StateKilled, "killed"},
		// Kill wins over every other disposition; a waitpid target wins
		// over a pending sleep, same order pick_next checks them in.
		{"killed while sleeping", func(p *PCB) { p.Sleep = 5; p.Kill = true }, StateKilled, "killed"},
		{"waiting while sleeping", func(p *PCB) { p.Sleep = 5; p.WaitPid = 4 }, StateWaiting, "waiting"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewIdle(0, make([]byte, 64), 0x1000, 1, 0, "p")
			tc.mutate(p)
			require.Equal(t, tc.want, p.State())
			assert.Equal(t, tc.wantStr, p.State().String())
		})
	}
}

func TestSnapshotReflectsFields(t *testing.T) {
	p := NewIdle(9, make([]byte, 64), 0x1000, 1, 42, "snap")
	p.Sleep = 3

	info := p.Snapshot()
	assert.Equal(t, int32(9), info.Pid)
	assert.Equal(t, uint32(42), info.Vruntime)
	assert.Equal(t, "snap", info.Name)
	assert.Equal(t, int32(-1), info.WaitPid)
	assert.Equal(t, int32(3), info.Sleep)
	assert.Equal(t, StateSleeping, info.State)
}
