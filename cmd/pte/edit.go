package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/scott-cotton/cli"

	"github.com/signadot/ptedit/editor"
	"github.com/signadot/ptedit/keygen"
	"github.com/signadot/ptedit/pt"
)

func newEditor(cfg *MainConfig, prefix string, readOnly, sync bool, log *slog.Logger) (*editor.Editor, error) {
	s, err := cfg.loadSchema()
	if err != nil {
		return nil, err
	}
	keys := keygen.NewRandom()
	if prefix != "" {
		keys = keygen.NewCounter(prefix)
	}
	return editor.New(editor.Config{
		Schema:    s,
		Keys:      keys,
		Log:       log,
		ReadOnly:  readOnly,
		SyncValue: sync,
	})
}

func edit(cfg *EditConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Edit.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: edit requires an operations file, got %v", cli.ErrUsage, args)
	}
	ed, err := newEditor(cfg.MainConfig, cfg.Keys, cfg.ReadOnly, false, theLog)
	if err != nil {
		return err
	}
	var doc pt.Document
	if cfg.Value != "" {
		if doc, err = readDoc(cc, cfg.Value); err != nil {
			return err
		}
	}
	data, err := readInput(cc, args[0])
	if err != nil {
		return err
	}
	ops, err := editor.DecodeOperations(data)
	if err != nil {
		return fmt.Errorf("error decoding %s: %w", args[0], err)
	}

	enc := json.NewEncoder(cc.Out)
	emit := func(evs []editor.Event) error {
		if !cfg.Events {
			return nil
		}
		for i := range evs {
			if err := enc.Encode(&evs[i]); err != nil {
				return err
			}
		}
		return nil
	}
	evs, err := ed.ApplyValue(doc)
	if err != nil {
		return err
	}
	if err := emit(evs); err != nil {
		return err
	}
	for i, op := range ops {
		evs, err := ed.Apply(op)
		if eerr := emit(evs); eerr != nil {
			return eerr
		}
		if err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	if cfg.Events {
		return nil
	}
	return writeJSON(cc, ed.Value())
}
