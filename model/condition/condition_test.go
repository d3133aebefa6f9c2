package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpression_Evaluate(t *testing.T) {
	testCases := []struct {
		description string
		source      string
		vars        map[string]interface{}
		expect      bool
		expectErr   bool
	}{
		{description: "positive int", source: "a > 0", vars: map[string]interface{}{"a": 5}, expect: true},
		{description: "negative int", source: "a > 0", vars: map[string]interface{}{"a": -1}, expect: false},
		{description: "float", source: "a >= 1.5", vars: map[string]interface{}{"a": 1.5}, expect: true},
		{description: "string and logic", source: `status == "ok" && n < 3`, vars: map[string]interface{}{"status": "ok", "n": 2}, expect: true},
		{description: "nested attribute", source: "order.total > 10", vars: map[string]interface{}{"order": map[string]interface{}{"total": 11}}, expect: true},
		{description: "undefined variable", source: "missing > 0", vars: map[string]interface{}{}, expectErr: true},
		{description: "non bool result", source: "a + 1", vars: map[string]interface{}{"a": 1}, expectErr: true},
	}

	for _, testCase := range testCases {
		expr, err := NewExpression(testCase.source)
		require.NoError(t, err, testCase.description)
		actual, err := expr.Evaluate(testCase.vars)
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		assert.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expect, actual, testCase.description)
	}
}

func TestNewExpression_Invalid(t *testing.T) {
	_, err := NewExpression("a >")
	assert.Error(t, err)
}

func TestNot(t *testing.T) {
	positive := MustExpression("a > 0")
	ok, err := Not(positive).Evaluate(map[string]interface{}{"a": -2})
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, _ = Not(positive).Evaluate(map[string]interface{}{})
	assert.False(t, ok, "failing condition must not become true")
}

func TestEquals(t *testing.T) {
	c := Equals("kind", "gold")
	ok, _ := c.Evaluate(map[string]interface{}{"kind": "gold"})
	assert.True(t, ok)
	ok, _ = c.Evaluate(map[string]interface{}{"kind": "silver"})
	assert.False(t, ok)
}

func TestAlways(t *testing.T) {
	ok, err := Always.Evaluate(nil)
	assert.Nil(t, err)
	assert.True(t, ok)
}
