package yml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("ACTFLOW_STORE", "bolt")
	t.Setenv("ACTFLOW_DIR", "/tmp/actflow")
	var testCases = []struct {
		description string
		input       string
		expect      string
	}{
		{description: "no references", input: "kind: memory", expect: "kind: memory"},
		{description: "single", input: "kind: ${env.ACTFLOW_STORE}", expect: "kind: bolt"},
		{description: "multiple", input: "${env.ACTFLOW_DIR}/${env.ACTFLOW_STORE}.db", expect: "/tmp/actflow/bolt.db"},
		{description: "unset", input: "url=${env.ACTFLOW_MISSING}-end", expect: "url=-end"},
		{description: "missing brace", input: "start ${env.ACTFLOW_STORE and more", expect: "start ${env.ACTFLOW_STORE and more"},
		{description: "invalid name rescanned", input: "${env.A ${env.ACTFLOW_STORE}", expect: "${env.A bolt"},
		{description: "empty name", input: "oops ${env.} done", expect: "oops  done"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, ExpandEnv(testCase.input), testCase.description)
	}
}
