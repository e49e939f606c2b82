package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/scripthost/internal/entity"
)

//go:embed schema.cue
var schemaSource string

// Config is a validated host configuration.
type Config struct {
	Host Host

	// Entities maps entity identities to the script each one runs.
	Entities map[entity.ID]string
}

// Host holds the settings of one script host.
type Host struct {
	FrameRate       int
	ShutdownTimeout time.Duration
	ScriptsLocation string
	CacheDB         string
}

// EntityScript is one preloaded entity script.
type EntityScript struct {
	ID     entity.ID
	Script string
}

// SortedEntities returns the configured entity scripts ordered by id.
func (c *Config) SortedEntities() []EntityScript {
	out := make([]EntityScript, 0, len(c.Entities))
	for id, s := range c.Entities {
		out = append(out, EntityScript{ID: id, Script: s})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// rawConfig mirrors the schema for decoding.
type rawConfig struct {
	Host struct {
		FrameRate       int    `json:"frame_rate"`
		ShutdownTimeout string `json:"shutdown_timeout"`
		ScriptsLocation string `json:"scripts_location"`
		CacheDB         string `json:"cache_db"`
	} `json:"host"`
	Entities map[string]string `json:"entities"`
}

// Error describes an invalid configuration.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the configuration of an empty file.
func Default() *Config {
	c, err := Parse("default.cue", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema defaults invalid: %v", err))
	}
	return c
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, src)
}

// Parse validates src, labelled filename in error positions.
func Parse(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var raw rawConfig
	if err := unified.Decode(&raw); err != nil {
		return nil, formatCUEError(err)
	}
	return fromRaw(unified, &raw)
}

func fromRaw(v cue.Value, raw *rawConfig) (*Config, error) {
	timeout, err := time.ParseDuration(raw.Host.ShutdownTimeout)
	if err != nil || timeout <= 0 {
		return nil, &Error{
			Field:   "host.shutdown_timeout",
			Message: fmt.Sprintf("invalid duration %q", raw.Host.ShutdownTimeout),
			Pos:     v.LookupPath(cue.ParsePath("host.shutdown_timeout")).Pos(),
		}
	}

	cfg := &Config{
		Host: Host{
			FrameRate:       raw.Host.FrameRate,
			ShutdownTimeout: timeout,
			ScriptsLocation: raw.Host.ScriptsLocation,
			CacheDB:         raw.Host.CacheDB,
		},
		Entities: make(map[entity.ID]string, len(raw.Entities)),
	}
	for key, script := range raw.Entities {
		id, err := entity.Parse(key)
		if err != nil || id.IsNil() {
			return nil, &Error{
				Field:   "entities",
				Message: fmt.Sprintf("invalid entity id %q", key),
				Pos:     v.LookupPath(cue.MakePath(cue.Str("entities"), cue.Str(key))).Pos(),
			}
		}
		cfg.Entities[id] = script
	}
	return cfg, nil
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	e := &Error{Field: "cue", Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}
