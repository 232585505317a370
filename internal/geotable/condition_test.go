package geotable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		in      string
		want    Condition
		wantErr bool
	}{
		{in: "magnitude,ge,8", want: Condition{Column: "magnitude", Op: OpGe, Value: int64(8)}},
		{in: "magnitude,ge,8.5", want: Condition{Column: "magnitude", Op: OpGe, Value: 8.5}},
		{in: "name,contains,creek", want: Condition{Column: "name", Op: OpContains, Value: "creek"}},
		{in: "active,eq,true", want: Condition{Column: "active", Op: OpEq, Value: true}},
		{in: "magnitude,>=,8", wantErr: true},
		{in: "magnitude,ge", wantErr: true},
		{in: ",ge,8", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCondition(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCondition_Match(t *testing.T) {
	day := time.Date(1970, 3, 26, 0, 0, 0, 0, time.UTC)
	rec := Record{Attrs: map[string]any{
		"magnitude": 6.5,
		"count":     int64(12),
		"name":      "Salt Creek",
		"fired_at":  day,
		"empty":     nil,
	}}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"float ge true", Condition{"magnitude", OpGe, 6.5}, true},
		{"float gt false", Condition{"magnitude", OpGt, 6.5}, false},
		{"int vs float coercion", Condition{"count", OpLt, 12.5}, true},
		{"string eq", Condition{"name", OpEq, "Salt Creek"}, true},
		{"contains", Condition{"name", OpContains, "Creek"}, true},
		{"contains miss", Condition{"name", OpContains, "River"}, false},
		{"time le", Condition{"fired_at", OpLe, day}, true},
		{"nil never matches", Condition{"empty", OpEq, "x"}, false},
		{"missing column", Condition{"ghost", OpEq, 1}, false},
		{"incomparable types", Condition{"name", OpLt, 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Match(rec))
		})
	}
}

func TestCompare_Errors(t *testing.T) {
	_, err := Compare("a", 1)
	assert.Error(t, err)
	_, err = Compare(struct{}{}, struct{}{})
	assert.Error(t, err)
}

func TestParseScalar(t *testing.T) {
	assert.Equal(t, int64(42), ParseScalar("42"))
	assert.Equal(t, 4.5, ParseScalar("4.5"))
	assert.Equal(t, true, ParseScalar("true"))
	assert.Equal(t, "creek", ParseScalar("creek"))
}
