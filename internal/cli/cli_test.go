package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTotpCode(t *testing.T) {
	// RFC 6238 test secret at t=59s.
	const secret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

	code, err := totpCode(secret, time.Unix(59, 0))
	require.NoError(t, err)
	require.Equal(t, "287082", code)
}

func TestTotpCodeNormalizesSecret(t *testing.T) {
	canonical, err := totpCode("GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", time.Unix(59, 0))
	require.NoError(t, err)

	sloppy, err := totpCode("  gezd gnbv gy3t qojq gezd gnbv gy3t qojq ", time.Unix(59, 0))
	require.NoError(t, err)
	require.Equal(t, canonical, sloppy)
}

func TestTotpCodeRejectsGarbage(t *testing.T) {
	_, err := totpCode("not base32!!", time.Unix(59, 0))
	require.Error(t, err)
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("ACE_BASE_URL", "https://ace.example.com")
	t.Setenv("ACE_STATE_DIR", t.TempDir())
	t.Setenv("ACE_TIMEOUT", "5s")

	cfg := LoadConfig()
	require.Equal(t, "https://ace.example.com", cfg.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Timeout)
	require.Contains(t, cfg.TokenPath(), "session.db")
}

func TestConfigDefaults(t *testing.T) {
	t.Setenv("ACE_BASE_URL", "")
	t.Setenv("ACE_TIMEOUT", "")

	cfg := LoadConfig()
	require.Equal(t, "http://localhost:8080", cfg.BaseURL)
	require.Equal(t, 15*time.Second, cfg.Timeout)
	require.Equal(t, "dev", cfg.Env)
}

func TestEmptyStateDirKeepsSessionInMemory(t *testing.T) {
	cfg := Config{StateDir: ""}
	require.Empty(t, cfg.TokenPath())
}
