package types

// Pipeline identifiers tagged onto every analytics document so that the
// heterogeneous result sets can share one store.
const (
	PipelinePerTypeKPI = "per_type_kpi"
	PipelineTopN       = "top_n"
	PipelinePowerIndex = "power_index"
)

// TypeKPI is one per-type result row produced by the per-type KPI pipeline.
type TypeKPI struct {
	Pipeline          string  `json:"pipeline"`
	Type              string  `json:"type"`
	AvgTotalBaseStats float64 `json:"avg_total_base_stats"`
	Count             int     `json:"count"`
}

// TopEntry is one ranked record produced by the top-N pipeline. The curated
// record is embedded whole so the result set is schema-preserving.
type TopEntry struct {
	Pipeline string `json:"pipeline"`
	Rank     int    `json:"rank"`
	CuratedRecord
}

// PowerSummary is the single scalar document produced by the power-index
// pipeline.
type PowerSummary struct {
	Pipeline      string  `json:"pipeline"`
	AvgPowerIndex float64 `json:"avg_power_index"`
}
