// Package rng provides the random number capability used by the simulation.
//
// A Stream is created from a master seed and an integer modifier. Distinct
// modifiers yield decorrelated streams, which is what lets every worker own
// an independent substream while a run stays reproducible for a fixed seed.
package rng

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/mathext/prng"
)

// ErrUnknownAlgorithm is returned when an algorithm name is not registered.
var ErrUnknownAlgorithm = errors.New("unknown rng algorithm")

// Algorithm identifies a random number generator implementation.
type Algorithm uint8

const (
	PCG Algorithm = iota
	ChaCha8
	MT19937
	MT19937x64
	SplitMix64
	Xoshiro256PlusPlus
	Xoshiro256StarStar
)

var algorithmNames = [...]string{
	PCG:                "pcg",
	ChaCha8:            "chacha8",
	MT19937:            "mt19937",
	MT19937x64:         "mt19937-64",
	SplitMix64:         "splitmix64",
	Xoshiro256PlusPlus: "xoshiro256pp",
	Xoshiro256StarStar: "xoshiro256ss",
}

// String returns the configuration name of the algorithm.
func (a Algorithm) String() string {
	if int(a) < len(algorithmNames) {
		return algorithmNames[a]
	}
	return fmt.Sprintf("Algorithm(%d)", uint8(a))
}

// ParseAlgorithm resolves a configuration name (case-insensitive).
func ParseAlgorithm(name string) (Algorithm, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range algorithmNames {
		if s == n {
			return Algorithm(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// Algorithms returns every registered algorithm in declaration order.
func Algorithms() []Algorithm {
	out := make([]Algorithm, len(algorithmNames))
	for i := range algorithmNames {
		out[i] = Algorithm(i)
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Stream is the random capability handed to simulation code.
// A Stream is not safe for concurrent use; each worker owns its own.
type Stream interface {
	Bool() bool
	IntN(n int) int
	Float64() float64
	Uint64() uint64

	// Reseed restarts the stream from the same master seed with a new modifier.
	Reseed(modifier uint64)
}

// source is a math/rand/v2 source that can be re-keyed from seed material.
type source interface {
	rand.Source
	seed(material []uint64)
}

// stream couples a reseedable source with the math/rand/v2 front end.
type stream struct {
	master uint64
	buf    [4]uint64
	words  int
	src    source
	r      *rand.Rand
}

// New creates a stream for the algorithm seeded from (masterSeed, modifier).
func New(alg Algorithm, masterSeed, modifier uint64) (Stream, error) {
	var (
		src   source
		words int
	)
	switch alg {
	case PCG:
		src, words = &pcgSource{PCG: rand.NewPCG(0, 0)}, 2
	case ChaCha8:
		src, words = &chachaSource{ChaCha8: rand.NewChaCha8([32]byte{})}, 4
	case MT19937:
		src, words = &mtSource{MT19937: prng.NewMT19937()}, 1
	case MT19937x64:
		src, words = &mt64Source{MT19937_64: prng.NewMT19937_64()}, 1
	case SplitMix64:
		src, words = &splitMixSource{SplitMix64: prng.NewSplitMix64(0)}, 1
	case Xoshiro256PlusPlus:
		src, words = &xoshiroPPSource{Xoshiro256plusplus: prng.NewXoshiro256plusplus(0)}, 1
	case Xoshiro256StarStar:
		src, words = &xoshiroSSSource{Xoshiro256starstar: prng.NewXoshiro256starstar(0)}, 1
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownAlgorithm, alg)
	}

	s := &stream{master: masterSeed, words: words, src: src}
	s.Reseed(modifier)
	s.r = rand.New(s.src)
	return s, nil
}

func (s *stream) Bool() bool       { return s.r.Uint64()&1 == 1 }
func (s *stream) IntN(n int) int   { return s.r.IntN(n) }
func (s *stream) Float64() float64 { return s.r.Float64() }
func (s *stream) Uint64() uint64   { return s.r.Uint64() }

func (s *stream) Reseed(modifier uint64) {
	m := s.buf[:s.words]
	expandInto(m, s.master, modifier)
	s.src.seed(m)
}

type pcgSource struct{ *rand.PCG }

func (p *pcgSource) seed(m []uint64) { p.PCG.Seed(m[0], m[1]) }

type chachaSource struct{ *rand.ChaCha8 }

func (c *chachaSource) seed(m []uint64) {
	var key [32]byte
	for i, w := range m {
		for b := 0; b < 8; b++ {
			key[i*8+b] = byte(w >> (8 * b))
		}
	}
	c.ChaCha8.Seed(key)
}

type mtSource struct{ *prng.MT19937 }

func (s *mtSource) seed(m []uint64) { s.MT19937.Seed(m[0]) }

type mt64Source struct{ *prng.MT19937_64 }

func (s *mt64Source) seed(m []uint64) { s.MT19937_64.Seed(m[0]) }

type splitMixSource struct{ *prng.SplitMix64 }

func (s *splitMixSource) seed(m []uint64) { s.SplitMix64.Seed(m[0]) }

type xoshiroPPSource struct{ *prng.Xoshiro256plusplus }

func (s *xoshiroPPSource) seed(m []uint64) { s.Xoshiro256plusplus.Seed(m[0]) }

type xoshiroSSSource struct{ *prng.Xoshiro256starstar }

func (s *xoshiroSSSource) seed(m []uint64) { s.Xoshiro256starstar.Seed(m[0]) }
