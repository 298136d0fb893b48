package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeKDL_IncludeIgnoreBlocks(t *testing.T) {
	cfg := Default(".")

	err := mergeKDL(cfg, `
index {
    include {
        "**/*.ts"
        "**/*.tsx"
    }
    ignore {
        "**/vendor/**"
    }
    follow_symlinks true
}
`)
	require.NoError(t, err)

	assert.Equal(t, []string{"**/*.ts", "**/*.tsx"}, cfg.Index.Include)
	assert.Equal(t, []string{"**/vendor/**"}, cfg.Index.Ignore)
	assert.True(t, cfg.Index.FollowSymlink)
}

func TestMergeKDL_MaxFileSize(t *testing.T) {
	cfg := Default(".")

	err := mergeKDL(cfg, `
index {
    max_file_size "10MB"
}
`)
	require.NoError(t, err)
	assert.Equal(t, int64(10*1024*1024), cfg.Index.MaxFileSize)
}

func TestMergeKDL_MetricsStoreBlock(t *testing.T) {
	cfg := Default(".")

	err := mergeKDL(cfg, `
store {
    metrics-store {
        cli "semmetrics"
        path "./.semindex/metrics.db"
    }
}
`)
	require.NoError(t, err)

	assert.Equal(t, "semmetrics", cfg.Store.MetricsCLI)
	assert.Equal(t, "./.semindex/metrics.db", cfg.Store.MetricsPath)
}

func TestMergeKDL_UnknownNodesIgnored(t *testing.T) {
	cfg := Default(".")
	before := *cfg

	err := mergeKDL(cfg, `
experimental {
    flag true
}
`)
	require.NoError(t, err)
	assert.Equal(t, before, *cfg)
}

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"10MB", 10 * 1024 * 1024},
		{"500KB", 500 * 1024},
		{"1GB", 1024 * 1024 * 1024},
		{"128B", 128},
		{"64", 64},
	}
	for _, c := range cases {
		got, err := parseSize(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestParseSize_Invalid(t *testing.T) {
	_, err := parseSize("not-a-size")
	require.Error(t, err)
}
