package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scripthost/internal/entity"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 60, cfg.Host.FrameRate)
	assert.Equal(t, time.Second, cfg.Host.ShutdownTimeout)
	assert.Empty(t, cfg.Host.ScriptsLocation)
	assert.Empty(t, cfg.Host.CacheDB)
	assert.Empty(t, cfg.Entities)
}

func TestParse_Full(t *testing.T) {
	src := `
		host: {
			frame_rate:       30
			shutdown_timeout: "250ms"
			scripts_location: "/usr/share/scripthost/scripts"
			cache_db:         "cache.db"
		}
		entities: {
			"0190a3f2-7c4e-7d1a-9b2c-3e4f5a6b7c8d": "file:///srv/scripts/door.js"
			"0190a3f2-7c4e-7d1a-9b2c-3e4f5a6b7c8e": "(function() {})"
		}
	`
	cfg, err := Parse("host.cue", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, Host{
		FrameRate:       30,
		ShutdownTimeout: 250 * time.Millisecond,
		ScriptsLocation: "/usr/share/scripthost/scripts",
		CacheDB:         "cache.db",
	}, cfg.Host)

	door := entity.MustParse("0190a3f2-7c4e-7d1a-9b2c-3e4f5a6b7c8d")
	assert.Equal(t, "file:///srv/scripts/door.js", cfg.Entities[door])

	sorted := cfg.SortedEntities()
	require.Len(t, sorted, 2)
	assert.Equal(t, door, sorted[0].ID)
	assert.Equal(t, "(function() {})", sorted[1].Script)
}

func TestParse_PartialHostKeepsDefaults(t *testing.T) {
	cfg, err := Parse("host.cue", []byte(`host: frame_rate: 120`))
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Host.FrameRate)
	assert.Equal(t, time.Second, cfg.Host.ShutdownTimeout)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"frame rate too high", `host: frame_rate: 500`, "frame_rate"},
		{"frame rate zero", `host: frame_rate: 0`, "frame_rate"},
		{"frame rate not an int", `host: frame_rate: "fast"`, "frame_rate"},
		{"unknown host field", `host: tick_rate: 5`, "tick_rate"},
		{"unknown top-level field", `plugins: []`, "plugins"},
		{"bad duration", `host: shutdown_timeout: "soon"`, "shutdown_timeout"},
		{"negative duration", `host: shutdown_timeout: "-1s"`, "shutdown_timeout"},
		{"entity key not an id", `entities: door: "x.js"`, "door"},
		{"nil entity id", `entities: "00000000-0000-0000-0000-000000000000": "x.js"`, "invalid entity id"},
		{"syntax error", `host: {`, "host.cue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("host.cue", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.cue")
	require.NoError(t, os.WriteFile(path, []byte(`host: scripts_location: "/srv/scripts"`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/scripts", cfg.Host.ScriptsLocation)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.cue"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestError_Format(t *testing.T) {
	err := &Error{Field: "host.frame_rate", Message: "out of range"}
	assert.Equal(t, "host.frame_rate: out of range", err.Error())
}
