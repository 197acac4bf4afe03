package schedule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFixtures(t *testing.T) {
	tests := []struct {
		name       string
		rounds     int
		throughput int
		want       Params
	}{
		{
			name: "single period", rounds: 60, throughput: 1,
			want: Params{Rounds: 60, Throughput: 1, Unrolling: 60, ExtraDelay: 0, Periods: 1, PeriodBits: 0, Latency: 121},
		},
		{
			name: "seven lanes", rounds: 60, throughput: 7,
			want: Params{Rounds: 60, Throughput: 7, Unrolling: 9, ExtraDelay: 0, Periods: 7, PeriodBits: 3, Latency: 121},
		},
		{
			name: "fully folded", rounds: 60, throughput: 60,
			want: Params{Rounds: 60, Throughput: 60, Unrolling: 1, ExtraDelay: 5, Periods: 60, PeriodBits: 6, Latency: 416},
		},
		{
			name: "reference rounds even throughput", rounds: 84, throughput: 2,
			want: Params{Rounds: 84, Throughput: 2, Unrolling: 42, ExtraDelay: 1, Periods: 2, PeriodBits: 1, Latency: 170},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.rounds, tt.throughput)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeRejects(t *testing.T) {
	_, err := Compute(60, 0)
	assert.True(t, errors.Is(err, ErrInvalidThroughput), "got %v", err)

	_, err = Compute(60, -3)
	assert.True(t, errors.Is(err, ErrInvalidThroughput), "got %v", err)

	_, err = Compute(60, 61)
	assert.True(t, errors.Is(err, ErrThroughputExceedsRounds), "got %v", err)

	_, err = Compute(0, 1)
	assert.True(t, errors.Is(err, ErrInvalidRounds), "got %v", err)
}

func TestScheduleInvariantsAllThroughputs(t *testing.T) {
	for _, rounds := range []int{1, 2, 7, 60, 84, 97} {
		for tp := 1; tp <= rounds; tp++ {
			p, err := Compute(rounds, tp)
			require.NoError(t, err, "rounds=%d T=%d", rounds, tp)

			assert.Equal(t, 1, GCD(tp, 2*p.Unrolling+p.ExtraDelay), "rounds=%d T=%d", rounds, tp)
			assert.GreaterOrEqual(t, p.Unrolling*p.Periods, rounds, "rounds=%d T=%d", rounds, tp)
			assert.Less(t, (p.Periods-1)*p.Unrolling, rounds, "rounds=%d T=%d", rounds, tp)
			assert.Less(t, p.ExtraDelay, tp+1, "search bound rounds=%d T=%d", rounds, tp)
			assert.NoError(t, p.Check(), "rounds=%d T=%d", rounds, tp)
		}
	}
}

func TestCoverageExactlyOnce(t *testing.T) {
	p, err := Compute(60, 7)
	require.NoError(t, err)

	counts := make(map[int]int)
	for _, rounds := range p.Coverage() {
		for _, r := range rounds {
			counts[r]++
		}
	}
	require.Len(t, counts, 60)
	for r := 0; r < 60; r++ {
		assert.Equal(t, 1, counts[r], "round %d", r)
	}
	assert.Equal(t, []int{0, 9, 18, 27, 36, 45, 54}, p.UnitRounds(0))
	assert.Equal(t, []int{8, 17, 26, 35, 44, 53}, p.UnitRounds(8))
	assert.Equal(t, 5, p.OutputUnit())
}

func TestCheckDetectsBrokenParams(t *testing.T) {
	p, err := Compute(60, 7)
	require.NoError(t, err)

	loose := p
	loose.Periods = 8
	assert.Error(t, loose.Check())

	short := p
	short.Periods = 6
	assert.Error(t, short.Check())

	shared := p
	shared.ExtraDelay = 3 // cycle 21 = 3*7
	assert.Error(t, shared.Check())
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, 0, BitWidth(1))
	assert.Equal(t, 1, BitWidth(2))
	assert.Equal(t, 2, BitWidth(3))
	assert.Equal(t, 3, BitWidth(7))
	assert.Equal(t, 3, BitWidth(8))
	assert.Equal(t, 4, BitWidth(9))

	assert.Equal(t, 6, GCD(12, 18))
	assert.Equal(t, 5, GCD(0, 5))
	assert.Equal(t, 9, CeilDiv(60, 7))

	assert.Equal(t, 5, CoprimeOffset(60, 2))
	assert.Equal(t, 0, CoprimeOffset(1, 0))
}
