package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"invoice-auditor/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearAuditEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AUDIT_DISCREPANCY_PERCENT", "AUDIT_LOW_CONFIDENCE", "AUDIT_DUPLICATE_LIMIT",
		"AUDIT_ROUND_AMOUNT_FLOOR", "AUDIT_VENDOR_SIMILARITY_FLOOR", "AUDIT_DUPLICATE_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAuditConfig_Defaults(t *testing.T) {
	clearAuditEnv(t)

	cfg, err := LoadAuditConfig("")
	require.NoError(t, err)
	assert.Equal(t, core.DefaultAuditConfig(), cfg)
}

func TestLoadAuditConfig_FileThenEnv(t *testing.T) {
	clearAuditEnv(t)

	path := filepath.Join(t.TempDir(), "audit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
audit:
  discrepancy_percent_threshold: 2.5
  low_confidence_threshold: 80
  duplicate_lookup_timeout: 750ms
`), 0o600))
	t.Setenv("AUDIT_LOW_CONFIDENCE", "60")

	cfg, err := LoadAuditConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2.5, cfg.DiscrepancyPercentThreshold)
	assert.Equal(t, 60, cfg.LowConfidenceThreshold, "env overrides the file")
	assert.Equal(t, 750*time.Millisecond, cfg.DuplicateLookupTimeout)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, 5, cfg.DuplicateLookupLimit)
	assert.Equal(t, 0.7, cfg.VendorSimilarityFloor)
}

func TestLoadAuditConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "non-numeric limit", env: map[string]string{"AUDIT_DUPLICATE_LIMIT": "five"}},
		{name: "bad duration", env: map[string]string{"AUDIT_DUPLICATE_TIMEOUT": "soon"}},
		{name: "similarity above one", env: map[string]string{"AUDIT_VENDOR_SIMILARITY_FLOOR": "1.5"}},
		{name: "zero limit", env: map[string]string{"AUDIT_DUPLICATE_LIMIT": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearAuditEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadAuditConfig("")
			assert.Error(t, err)
		})
	}
}

func TestLoadAuditConfig_MissingFile(t *testing.T) {
	clearAuditEnv(t)
	_, err := LoadAuditConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
