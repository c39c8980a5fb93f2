package main

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"

	"github.com/signadot/ptedit/schema"
)

type MainConfig struct {
	Schema string `cli:"name=schema desc='schema descriptor: a registered name or a yaml file'"`
	Color  bool   `cli:"name=color desc='color reports even when not writing to a terminal'"`

	Main *cli.Command
}

// loadSchema returns the descriptor named by -schema, the default one
// when it is unset.
func (cfg *MainConfig) loadSchema() (*schema.Schema, error) {
	if cfg.Schema == "" {
		return schema.Default(), nil
	}
	if s := schema.Lookup(cfg.Schema); s != nil {
		return s, nil
	}
	return schema.LoadFile(cfg.Schema)
}

// colors reports whether output to w should be colored.
func (cfg *MainConfig) colors(w io.Writer) bool {
	if cfg.Color {
		return true
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) && !color.NoColor
}

type ValidateConfig struct {
	*MainConfig
	Quiet bool `cli:"name=q desc='only set the exit status'"`

	Validate *cli.Command
}

type NormalizeConfig struct {
	*MainConfig
	Check bool `cli:"name=check desc='exit 1 if anything was repaired'"`

	Normalize *cli.Command
}

type DiffConfig struct {
	*MainConfig
	JSON bool `cli:"name=json desc='print an RFC 6902 JSON Patch instead'"`

	Diff *cli.Command
}

type PatchConfig struct {
	*MainConfig
	JSON bool `cli:"name=json desc='replay the patches as RFC 6902 JSON Patch'"`

	Patch *cli.Command
}

type EditConfig struct {
	*MainConfig
	Value    string `cli:"name=value desc='initial document (default: empty)'"`
	Events   bool   `cli:"name=events desc='print every event as a JSON line instead of the final value'"`
	ReadOnly bool   `cli:"name=readonly desc='open the document read-only'"`
	Keys     string `cli:"name=keys desc='prefix for counter keys (default: random keys)'"`

	Edit *cli.Command
}

type ServeConfig struct {
	*MainConfig
	Gops     bool   `cli:"name=gops desc='start a gops diagnostics agent'"`
	LogJSON  bool   `cli:"name=logjson desc='log JSON lines to stderr'"`
	Sync     bool   `cli:"name=sync desc='send a value event after every mutation'"`
	Keys     string `cli:"name=keys desc='prefix for counter keys (default: random keys)'"`
	ReadOnly bool   `cli:"name=readonly desc='open the document read-only'"`

	Serve *cli.Command
}
