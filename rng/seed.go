package rng

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mathext/prng"
)

const golden = 0x9e3779b97f4a7c15

// mix is the SplitMix64 finalizer; small input changes flip about half the output bits.
func mix(x uint64) uint64 {
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// Expand turns (masterSeed, modifier) into n words of algorithm seed material.
// The result depends only on its arguments.
func Expand(masterSeed, modifier uint64, n int) []uint64 {
	out := make([]uint64, n)
	expandInto(out, masterSeed, modifier)
	return out
}

func expandInto(dst []uint64, masterSeed, modifier uint64) {
	var sm prng.SplitMix64
	sm.Seed(mix(masterSeed+golden) ^ mix(modifier*golden+1))
	for i := range dst {
		dst[i] = sm.Uint64()
	}
}

// Purpose separates independent uses of randomness within one worker.
type Purpose uint8

const (
	PurposeAgents Purpose = iota
	PurposeShuffle
	PurposeInit
	numPurposes
)

// unitBit marks unit-keyed modifiers so they never collide with worker ones.
const unitBit = 1 << 63

// WorkerModifier derives the modifier of a worker's substream for a purpose.
// Changing the worker count changes which modifier handles which cells, so
// trajectories differ between worker counts even for the same master seed.
func WorkerModifier(worker int, purpose Purpose) uint64 {
	return uint64(worker)*uint64(numPurposes) + uint64(purpose)
}

// UnitModifier derives the modifier used to reseed a stream before it
// processes one work unit of one phase in one tick.
func UnitModifier(tick, phase, unit int) uint64 {
	h := mix(uint64(tick)*golden + uint64(phase))
	return (mix(h^uint64(unit)) | unitBit)
}

// Derive separates a purpose-specific stream from a unit modifier.
// PurposeAgents maps to the modifier itself.
func Derive(modifier uint64, p Purpose) uint64 {
	if p == PurposeAgents {
		return modifier
	}
	return mix(modifier^uint64(p)*golden) | unitBit
}

// Keying selects how substreams are bound to work.
type Keying uint8

const (
	// KeyByWorker gives each worker one stream for the whole run.
	KeyByWorker Keying = iota
	// KeyByUnit reseeds the worker's stream for every claimed work unit,
	// making results independent of worker count and claim order.
	KeyByUnit
)

// String returns the configuration name of the keying mode.
func (k Keying) String() string {
	switch k {
	case KeyByWorker:
		return "worker"
	case KeyByUnit:
		return "unit"
	}
	return fmt.Sprintf("Keying(%d)", uint8(k))
}

// ParseKeying resolves "worker" or "unit".
func ParseKeying(name string) (Keying, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "worker":
		return KeyByWorker, nil
	case "unit":
		return KeyByUnit, nil
	}
	return 0, fmt.Errorf("unknown keying %q (want worker or unit)", name)
}

// MarshalText implements encoding.TextMarshaler.
func (k Keying) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Keying) UnmarshalText(text []byte) error {
	parsed, err := ParseKeying(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
