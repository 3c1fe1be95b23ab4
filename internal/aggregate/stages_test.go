package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter(t *testing.T) {
	in := []int{1, 2, 3, 4, 5}
	out := Filter(in, func(v int) bool { return v%2 == 0 })
	assert.Equal(t, []int{2, 4}, out)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, in)
}

func TestFilter_NothingMatches(t *testing.T) {
	out := Filter([]int{1, 3}, func(v int) bool { return v > 10 })
	assert.Empty(t, out)
}

func TestSortBy_IsStable(t *testing.T) {
	type pair struct {
		key int
		tag string
	}
	in := []pair{{2, "a"}, {1, "b"}, {2, "c"}, {1, "d"}}
	out := SortBy(in, func(a, b pair) bool { return a.key < b.key })
	assert.Equal(t, []pair{{1, "b"}, {1, "d"}, {2, "a"}, {2, "c"}}, out)
	// Input untouched.
	assert.Equal(t, pair{2, "a"}, in[0])
}

func TestHead(t *testing.T) {
	in := []int{1, 2, 3}
	assert.Equal(t, []int{1, 2}, Head(in, 2))
	assert.Equal(t, in, Head(in, 3))
	assert.Equal(t, in, Head(in, 10))
	assert.Empty(t, Head(in, 0))
}

func TestGroupBy(t *testing.T) {
	in := []string{"apple", "avocado", "banana", "cherry"}
	groups := GroupBy(in, func(s string) byte { return s[0] })
	assert.Len(t, groups, 3)
	assert.Equal(t, []string{"apple", "avocado"}, groups['a'])
	assert.Equal(t, []string{"banana"}, groups['b'])
}

func TestProject(t *testing.T) {
	out := Project([]int{1, 2, 3}, func(v int) int { return v * v })
	assert.Equal(t, []int{1, 4, 9}, out)
}

func TestPartialAggregate(t *testing.T) {
	cases := []struct {
		name   string
		typ    AggregateType
		values []float64
		want   float64
	}{
		{"count", AggCount, []float64{5, 5, 5}, 3},
		{"sum", AggSum, []float64{1, 2, 3}, 6},
		{"min", AggMin, []float64{4, -1, 7}, -1},
		{"max", AggMax, []float64{4, -1, 7}, 7},
		{"avg", AggAvg, []float64{2, 4, 9}, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agg := NewPartialAggregate(tc.typ)
			for _, v := range tc.values {
				agg.Accumulate(v)
			}
			assert.InDelta(t, tc.want, agg.Result(), 1e-9)
		})
	}
}

func TestPartialAggregate_EmptyAvgIsZero(t *testing.T) {
	agg := NewPartialAggregate(AggAvg)
	assert.Zero(t, agg.Result())
}
