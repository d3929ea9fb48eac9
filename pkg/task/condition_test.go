package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		in   string
		want Condition
	}{
		{"=", Eq},
		{"equals", Eq},
		{"!=", Neq},
		{"different", Neq},
		{">", Gt},
		{"greater", Gt},
		{"<", Lt},
		{"lower", Lt},
		{" < ", Lt},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCondition(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, in := range []string{"", ">=", "~=", "eq"} {
		_, err := ParseCondition(in)
		assert.Error(t, err, in)
	}
}

func TestConditionEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		cond      Condition
		value     any
		threshold any
		want      bool
	}{
		{"int lower true", Lt, 2, 3, true},
		{"int lower false", Lt, 5, 3, false},
		{"mixed numeric types", Gt, int64(10), 9.5, true},
		{"float equality", Eq, 1.5, 1.5, true},
		{"uint widened", Eq, uint8(200), 200, true},
		{"string equal", Eq, "ok", "ok", true},
		{"string ordered", Lt, "abc", "abd", true},
		{"bool equal", Eq, true, true, true},
		{"bool not equal", Neq, true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cond.Evaluate(tt.value, tt.threshold)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConditionEvaluateErrors(t *testing.T) {
	_, err := Lt.Evaluate(5, "three")
	assert.Error(t, err)

	_, err = Eq.Evaluate("five", 5)
	assert.Error(t, err)

	_, err = Gt.Evaluate(true, false)
	assert.Error(t, err)

	_, err = Eq.Evaluate([]int{1}, 1)
	assert.Error(t, err)

	_, err = Eq.Evaluate(nil, 1)
	assert.Error(t, err)
}

func TestObservationRing(t *testing.T) {
	var r observationRing
	assert.Empty(t, r.snapshot())

	for i := 1; i <= 3; i++ {
		r.add(Observation{Value: i, OK: true})
	}
	snap := r.snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, 3, snap[0].Value)
	assert.Equal(t, 1, snap[2].Value)

	for i := 4; i <= 8; i++ {
		r.add(Observation{Value: i, OK: true})
	}
	snap = r.snapshot()
	require.Len(t, snap, historySize)
	assert.Equal(t, 8, snap[0].Value)
	assert.Equal(t, 4, snap[4].Value)
}
