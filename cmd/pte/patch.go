package main

import (
	"encoding/json"
	"fmt"

	"github.com/scott-cotton/cli"

	"github.com/signadot/ptedit/patch"
	"github.com/signadot/ptedit/pt"
)

func patchDoc(cfg *PatchConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Patch.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: patch requires a document and a patch file, got %v", cli.ErrUsage, args)
	}
	docData, err := readInput(cc, args[0])
	if err != nil {
		return err
	}
	patchData, err := readInput(cc, args[1])
	if err != nil {
		return err
	}
	var patches []patch.Patch
	if err := json.Unmarshal(patchData, &patches); err != nil {
		return fmt.Errorf("error decoding %s: %w", args[1], err)
	}
	if cfg.JSON {
		out, err := patch.ApplyJSON(docData, patches)
		if err != nil {
			return err
		}
		var v any
		if err := json.Unmarshal(out, &v); err != nil {
			return err
		}
		return writeJSON(cc, v)
	}
	doc, err := pt.Parse(docData)
	if err != nil {
		return fmt.Errorf("error decoding %s: %w", args[0], err)
	}
	res, err := patch.Apply(doc, patches)
	if err != nil {
		return err
	}
	return writeJSON(cc, res)
}
