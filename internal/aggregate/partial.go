// Package aggregate executes the fixed aggregation pipelines over the
// CURATED store and materializes their results into ANALYTICS.
package aggregate

// AggregateType represents the type of aggregate function.
type AggregateType int

const (
	AggCount AggregateType = iota
	AggSum
	AggMin
	AggMax
	AggAvg
)

// PartialAggregate accumulates one aggregate over a value stream. For AVG,
// both Sum and Count are tracked so the mean is exact regardless of
// accumulation order.
type PartialAggregate struct {
	Type  AggregateType
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	IsSet bool
}

// NewPartialAggregate creates a new empty partial aggregate of the given type.
func NewPartialAggregate(aggType AggregateType) *PartialAggregate {
	return &PartialAggregate{Type: aggType}
}

// Accumulate adds a single value to the partial aggregate.
func (p *PartialAggregate) Accumulate(value float64) {
	switch p.Type {
	case AggCount:
		p.Count++
		p.IsSet = true

	case AggSum, AggAvg:
		p.Sum += value
		p.Count++
		p.IsSet = true

	case AggMin:
		if !p.IsSet || value < p.Min {
			p.Min = value
			p.IsSet = true
		}
		p.Count++

	case AggMax:
		if !p.IsSet || value > p.Max {
			p.Max = value
			p.IsSet = true
		}
		p.Count++
	}
}

// Result returns the final value of the aggregate. An empty aggregate
// yields zero.
func (p *PartialAggregate) Result() float64 {
	if !p.IsSet {
		return 0
	}

	switch p.Type {
	case AggCount:
		return float64(p.Count)
	case AggSum:
		return p.Sum
	case AggMin:
		return p.Min
	case AggMax:
		return p.Max
	case AggAvg:
		if p.Count == 0 {
			return 0
		}
		return p.Sum / float64(p.Count)
	}
	return 0
}
