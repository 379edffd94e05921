package storage

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpSwap/internal/model"
)

func TestJsonlSinkAppendsAndScans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	sink := NewJsonlSink(path)

	pool := solana.PublicKey{1}
	first := model.NewSwapEvent(10, 100, model.SwapEvent{PoolID: pool, InputAmount: 5, OutputAmount: 4})
	second := model.NewLpChangeEvent(11, 101, model.LpChangeEvent{PoolID: pool, ChangeType: model.ChangeWithdraw})
	require.NoError(t, sink.PutEvents([]model.Event{first}))
	require.NoError(t, sink.PutEvents([]model.Event{second}))
	require.NoError(t, sink.PutEvents(nil))

	var got []model.Event
	var lines []int
	err := ScanJsonlFile(path, func(line int, ev model.Event) error {
		lines = append(lines, line)
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []int{1, 2}, lines)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, uint64(4), got[0].Swap.OutputAmount)
	assert.Equal(t, pool, got[1].PoolID)
	assert.Equal(t, model.ChangeWithdraw, got[1].LpChange.ChangeType)
}

func TestScanJsonl(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []uint64
		wantErr string
	}{
		{name: "skips blank lines", input: "{\"slot\":1}\n\n{\"slot\":2}\n", want: []uint64{1, 2}},
		{name: "no trailing newline", input: "{\"slot\":3}", want: []uint64{3}},
		{name: "bad line", input: "{\"slot\":1}\nnot json\n", want: []uint64{1}, wantErr: "decode line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []uint64
			err := ScanJsonl(strings.NewReader(tt.input), func(_ int, op model.Operation) error {
				got = append(got, op.Slot)
				return nil
			})
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanJsonlFileMissing(t *testing.T) {
	called := false
	err := ScanJsonlFile(filepath.Join(t.TempDir(), "missing.jsonl"), func(int, model.Operation) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}
