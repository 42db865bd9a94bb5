package actflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

func TestDecodeConfig(t *testing.T) {
	t.Setenv("ACTFLOW_TEST_DIR", "/var/lib/actflow")
	var testCases = []struct {
		description string
		data        string
		expect      func() *Config
		expectErr   string
	}{
		{
			description: "defaults",
			data:        "{}",
			expect:      DefaultConfig,
		},
		{
			description: "bolt store with retry",
			data: `
store:
  kind: bolt
  url: /tmp/actflow.db
timer:
  retryInterval: 250ms
logging:
  level: debug
`,
			expect: func() *Config {
				ret := DefaultConfig()
				ret.Store = StoreConfig{Kind: StoreBolt, URL: "/tmp/actflow.db"}
				ret.Timer.RetryInterval = 250 * time.Millisecond
				ret.Logging.Level = "debug"
				return ret
			},
		},
		{
			description: "env reference",
			data:        "store:\n  kind: fs\n  url: file://${env.ACTFLOW_TEST_DIR}/instances\n",
			expect: func() *Config {
				ret := DefaultConfig()
				ret.Store = StoreConfig{Kind: StoreFS, URL: "file:///var/lib/actflow/instances"}
				return ret
			},
		},
		{
			description: "fs store without url",
			data:        "store:\n  kind: fs\n",
			expectErr:   "store.url",
		},
		{
			description: "several errors",
			data:        "store:\n  kind: redis\ntracking:\n  queue: kafka\nlogging:\n  level: loud\n",
			expectErr:   "tracking.queue",
		},
	}
	for _, testCase := range testCases {
		actual, err := DecodeConfig([]byte(testCase.data))
		if testCase.expectErr != "" {
			require.Error(t, err, testCase.description)
			assert.Contains(t, err.Error(), testCase.expectErr, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expect(), actual, testCase.description)
	}
}

func TestLoadConfig(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	URL := "mem://localhost/actflow/config.yaml"
	require.NoError(t, fs.Upload(ctx, URL, file.DefaultFileOsMode, strings.NewReader("tracking:\n  queue: memory\n")))
	config, err := LoadConfig(ctx, fs, URL)
	require.NoError(t, err)
	assert.Equal(t, TrackingMemory, config.Tracking.Queue)
	assert.Equal(t, StoreMemory, config.Store.Kind)
	logger, err := config.Logging.NewLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
