package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testDoc() Document {
	return Document{
		"name":         "Bulbasaur",
		"type_primary": "Grass",
		"catch_rate":   float64(45),
		"stats": map[string]interface{}{
			"hp": map[string]interface{}{
				"base": float64(45),
			},
		},
	}
}

func TestFilter_EmptyMatchesEverything(t *testing.T) {
	var f Filter
	assert.True(t, f.Matches(testDoc()))
	assert.True(t, f.Matches(Document{}))
}

func TestFilter_Equality(t *testing.T) {
	doc := testDoc()

	assert.True(t, Filter{Eq("name", "Bulbasaur")}.Matches(doc))
	assert.False(t, Filter{Eq("name", "Ivysaur")}.Matches(doc))

	// Numeric equality holds across int and float operands.
	assert.True(t, Filter{Eq("catch_rate", 45)}.Matches(doc))
	assert.True(t, Filter{Eq("catch_rate", float64(45))}.Matches(doc))
}

func TestFilter_Comparisons(t *testing.T) {
	doc := testDoc()

	assert.True(t, Filter{Gt("catch_rate", 40)}.Matches(doc))
	assert.False(t, Filter{Gt("catch_rate", 45)}.Matches(doc))
	assert.True(t, Filter{Gte("catch_rate", 45)}.Matches(doc))
	assert.True(t, Filter{Lt("catch_rate", 50)}.Matches(doc))
	assert.True(t, Filter{Lte("catch_rate", 45)}.Matches(doc))
	assert.False(t, Filter{Lt("catch_rate", 45)}.Matches(doc))
}

func TestFilter_Membership(t *testing.T) {
	doc := testDoc()

	assert.True(t, Filter{In("type_primary", "Grass", "Fire")}.Matches(doc))
	assert.False(t, Filter{In("type_primary", "Water", "Fire")}.Matches(doc))
}

func TestFilter_DottedPath(t *testing.T) {
	doc := testDoc()

	assert.True(t, Filter{Eq("stats.hp.base", 45)}.Matches(doc))
	assert.True(t, Filter{Gt("stats.hp.base", 40)}.Matches(doc))
	assert.False(t, Filter{Gt("stats.hp.base", 45)}.Matches(doc))
}

func TestFilter_MissingFieldNeverMatches(t *testing.T) {
	doc := testDoc()

	assert.False(t, Filter{Eq("species", "Seed")}.Matches(doc))
	assert.False(t, Filter{Gt("species", 0)}.Matches(doc))
	assert.False(t, Filter{Eq("stats.attack.base", 49)}.Matches(doc))
}

func TestFilter_Conjunction(t *testing.T) {
	doc := testDoc()

	both := Filter{Eq("type_primary", "Grass"), Gt("catch_rate", 40)}
	assert.True(t, both.Matches(doc))

	oneFails := Filter{Eq("type_primary", "Grass"), Gt("catch_rate", 50)}
	assert.False(t, oneFails.Matches(doc))
}

func TestSetPath_CreatesNestedObjects(t *testing.T) {
	doc := Document{}
	setPath(doc, "stats.speed.base", 45)

	v, ok := lookupPath(doc, "stats.speed.base")
	assert.True(t, ok)
	assert.Equal(t, 45, v)
}

func TestSetPath_OverwritesScalarWithObject(t *testing.T) {
	doc := Document{"stats": "broken"}
	setPath(doc, "stats.hp.base", 1)

	v, ok := lookupPath(doc, "stats.hp.base")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCompareValues(t *testing.T) {
	cmp, ok := compareValues(float64(1), 2)
	assert.True(t, ok)
	assert.Negative(t, cmp)

	cmp, ok = compareValues("b", "a")
	assert.True(t, ok)
	assert.Positive(t, cmp)

	_, ok = compareValues("a", 1)
	assert.False(t, ok)
}
