// Package types provides the core record types for the bestiary pipeline.
package types

// Stat names that every record must carry in its stats map.
const (
	StatHP      = "hp"
	StatAttack  = "attack"
	StatDefense = "defense"
	StatSpeed   = "speed"
)

// BaseStatNames lists the fixed stat key set in canonical order.
var BaseStatNames = []string{StatHP, StatAttack, StatDefense, StatSpeed}

// StatBlock holds the base value and the observed min/max for one stat.
type StatBlock struct {
	Base int `json:"base"`
	Min  int `json:"min"`
	Max  int `json:"max"`
}

// RawRecord is the minimally-typed, structurally-cleaned representation of
// one source row. Name is the primary key and is unique after ingestion
// de-duplication. HeightM and WeightKg are pointers because the source may
// omit them; curation fills missing values with the RAW median.
type RawRecord struct {
	Name          string               `json:"name"`
	TypePrimary   string               `json:"type_primary"`
	TypeSecondary string               `json:"type_secondary,omitempty"`
	Species       string               `json:"species,omitempty"`
	HeightM       *float64             `json:"height_m,omitempty"`
	WeightKg      *float64             `json:"weight_kg,omitempty"`
	Abilities     []string             `json:"abilities,omitempty"`
	CatchRate     int                  `json:"catch_rate"`
	BaseExp       int                  `json:"base_exp"`
	GrowthRate    string               `json:"growth_rate,omitempty"`
	EggGroups     []string             `json:"egg_groups,omitempty"`
	Stats         map[string]StatBlock `json:"stats"`
}

// BaseStat returns the base value for the named stat and whether it is present.
func (r *RawRecord) BaseStat(name string) (int, bool) {
	sb, ok := r.Stats[name]
	if !ok {
		return 0, false
	}
	return sb.Base, true
}

// CuratedRecord is the analysis-ready representation, derived one-to-one
// from a RawRecord. Height and weight are always present (median-filled),
// and the three derived fields are computed by the curation transformer.
type CuratedRecord struct {
	Name           string               `json:"name"`
	TypePrimary    string               `json:"type_primary"`
	TypeSecondary  string               `json:"type_secondary,omitempty"`
	Species        string               `json:"species,omitempty"`
	HeightM        float64              `json:"height_m"`
	WeightKg       float64              `json:"weight_kg"`
	CatchRate      int                  `json:"catch_rate"`
	BaseExp        int                  `json:"base_exp"`
	GrowthRate     string               `json:"growth_rate,omitempty"`
	Stats          map[string]StatBlock `json:"stats"`
	BMI            float64              `json:"bmi"`
	TotalBaseStats int                  `json:"total_base_stats"`
	IsDualType     bool                 `json:"is_dual_type"`
}

// BaseStat returns the base value for the named stat and whether it is present.
func (c *CuratedRecord) BaseStat(name string) (int, bool) {
	sb, ok := c.Stats[name]
	if !ok {
		return 0, false
	}
	return sb.Base, true
}
