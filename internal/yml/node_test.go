package yml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssignments(t *testing.T) {
	var testCases = []struct {
		description string
		pairs       []string
		expect      map[string]interface{}
		expectErr   bool
	}{
		{description: "scalars", pairs: []string{"a=1", "b=true", "c=yes please", "d=1.5", "e="},
			expect: map[string]interface{}{"a": 1, "b": true, "c": "yes please", "d": 1.5, "e": nil}},
		{description: "collections", pairs: []string{"list=[1, x]", "map={k: v}"},
			expect: map[string]interface{}{"list": []interface{}{1, "x"}, "map": map[string]interface{}{"k": "v"}}},
		{description: "missing name", pairs: []string{"=1"}, expectErr: true},
		{description: "invalid yaml", pairs: []string{"a=[1"}, expectErr: true},
	}
	for _, testCase := range testCases {
		actual, err := ParseAssignments(testCase.pairs)
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expect, actual, testCase.description)
	}
}
