package config

import (
	"context"
	_ "embed"
	stderrors "errors"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/trussworks/ephemeral-env/errors"
	"github.com/trussworks/ephemeral-env/fs"
)

//go:embed schema.cue
var schemaSource []byte

// Load reads path from filesystem, validates it against the schema and
// returns the decoded configuration.
func Load(ctx context.Context, filesystem fs.ReadFS, path string) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := filesystem.ReadFile(path)
	if err != nil {
		code := errors.CodeInvalidConfig
		if stderrors.Is(err, os.ErrNotExist) {
			code = errors.CodeNotFound
		}
		return nil, errors.WrapWithContext(err, code,
			"failed to read configuration", map[string]interface{}{"path": path})
	}

	return Parse(raw, path)
}

// Parse validates and decodes raw CUE source. filename is used in error
// positions only.
func Parse(raw []byte, filename string) (*Config, error) {
	cctx := cuecontext.New()

	schema := cctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "embedded schema does not compile")
	}

	value := cctx.CompileBytes(raw, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig,
			"failed to parse configuration", map[string]interface{}{"path": filename})
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeSchemaFailed,
			"configuration does not match schema", map[string]interface{}{
				"path":    filename,
				"details": cueerrors.Details(err, nil),
			})
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeSchemaFailed,
			"failed to decode configuration", map[string]interface{}{"path": filename})
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
