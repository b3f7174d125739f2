package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draw(t *testing.T, s Stream, n int) []uint64 {
	t.Helper()
	out := make([]uint64, n)
	for i := range out {
		out[i] = s.Uint64()
	}
	return out
}

func TestNew_Reproducible(t *testing.T) {
	for _, alg := range Algorithms() {
		t.Run(alg.String(), func(t *testing.T) {
			a, err := New(alg, 1234, WorkerModifier(3, PurposeAgents))
			require.NoError(t, err)
			b, err := New(alg, 1234, WorkerModifier(3, PurposeAgents))
			require.NoError(t, err)

			assert.Equal(t, draw(t, a, 64), draw(t, b, 64))
		})
	}
}

func TestNew_ModifiersDiverge(t *testing.T) {
	for _, alg := range Algorithms() {
		t.Run(alg.String(), func(t *testing.T) {
			a, err := New(alg, 99, WorkerModifier(0, PurposeAgents))
			require.NoError(t, err)
			b, err := New(alg, 99, WorkerModifier(1, PurposeAgents))
			require.NoError(t, err)

			xa, xb := draw(t, a, 32), draw(t, b, 32)
			same := 0
			for i := range xa {
				if xa[i] == xb[i] {
					same++
				}
			}
			assert.Zero(t, same, "streams with different modifiers should not share outputs")
		})
	}
}

func TestReseed_RestartsStream(t *testing.T) {
	s, err := New(MT19937, 7, 11)
	require.NoError(t, err)
	first := draw(t, s, 16)

	s.Reseed(42)
	_ = draw(t, s, 5)
	s.Reseed(11)

	assert.Equal(t, first, draw(t, s, 16))
}

func TestIntN_Bounds(t *testing.T) {
	s, err := New(PCG, 5, 0)
	require.NoError(t, err)
	for range 1000 {
		v := s.IntN(5)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 5)
		f := s.Float64()
		require.GreaterOrEqual(t, f, 0.0)
		require.Less(t, f, 1.0)
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		name    string
		want    Algorithm
		wantErr bool
	}{
		{"pcg", PCG, false},
		{"MT19937", MT19937, false},
		{" mt19937-64 ", MT19937x64, false},
		{"xoshiro256ss", Xoshiro256StarStar, false},
		{"randu", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	_, err := New(Algorithm(200), 1, 1)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestModifiers(t *testing.T) {
	seen := make(map[uint64]bool)
	for w := range 8 {
		for p := PurposeAgents; p < numPurposes; p++ {
			m := WorkerModifier(w, p)
			assert.False(t, seen[m], "duplicate worker modifier %d", m)
			seen[m] = true
		}
	}
	u := UnitModifier(1, 0, 0)
	assert.NotZero(t, u&unitBit)
	assert.NotEqual(t, u, UnitModifier(1, 0, 1))
	assert.NotEqual(t, u, UnitModifier(2, 0, 0))
	assert.Equal(t, u, UnitModifier(1, 0, 0))

	assert.Equal(t, u, Derive(u, PurposeAgents))
	assert.NotEqual(t, u, Derive(u, PurposeShuffle))
	assert.NotZero(t, Derive(u, PurposeShuffle)&unitBit)
}

func TestExpand_Deterministic(t *testing.T) {
	assert.Equal(t, Expand(1, 2, 4), Expand(1, 2, 4))
	assert.NotEqual(t, Expand(1, 2, 4), Expand(1, 3, 4))
	assert.NotEqual(t, Expand(1, 2, 4), Expand(2, 2, 4))
	assert.Len(t, Expand(1, 2, 3), 3)
}

func TestParseKeying(t *testing.T) {
	k, err := ParseKeying("unit")
	require.NoError(t, err)
	assert.Equal(t, KeyByUnit, k)

	k, err = ParseKeying("")
	require.NoError(t, err)
	assert.Equal(t, KeyByWorker, k)

	_, err = ParseKeying("cell")
	assert.Error(t, err)
}
