// Package configschema validates the replica's YAML bootstrap config
// against an embedded CUE schema before the engine starts: catch a bad
// peer ID or seed list with a structured error instead of a confusing
// failure three layers deeper.
package configschema

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSrc string

// Config is the replica's bootstrap configuration, read from YAML and
// checked against schema.cue before anything in internal/engine runs.
type Config struct {
	PeerID                string   `yaml:"peer_id"`
	SeedPeers             []string `yaml:"seed_peers"`
	SQLitePath            string   `yaml:"sqlite_path"`
	LogLevel              string   `yaml:"log_level"`
	DeferralWarnThreshold int      `yaml:"deferral_warn_threshold"`
}

// ValidationError wraps a CUE schema violation with the offending field
// path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load parses raw YAML bytes into a Config and validates it against
// schema.cue, filling in defaults (seed_peers: [], log_level: "info",
// deferral_warn_threshold: 3) the schema declares.
func Load(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, &ValidationError{Field: "yaml", Message: err.Error()}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("configschema: invalid embedded schema: %w", err)
	}

	val := ctx.Encode(cfg)
	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	if err := unified.Decode(&cfg); err != nil {
		return nil, formatCUEError(err)
	}

	return &cfg, nil
}

func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Field: "config", Message: err.Error()}
	}
	first := errs[0]
	path := first.Path()
	field := "config"
	if len(path) > 0 {
		field = path[len(path)-1]
	}
	return &ValidationError{Field: field, Message: first.Error()}
}
