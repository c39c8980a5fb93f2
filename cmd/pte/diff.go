package main

import (
	"fmt"

	"github.com/scott-cotton/cli"

	"github.com/signadot/ptedit/patch"
)

func diff(cfg *DiffConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Diff.Parse(cc, args)
	if err != nil {
		cfg.Diff.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: diff requires 2 args, got %v", cli.ErrUsage, args)
	}
	from, err := readDoc(cc, args[0])
	if err != nil {
		return err
	}
	to, err := readDoc(cc, args[1])
	if err != nil {
		return err
	}
	patches := patch.Diff(from, to)
	if cfg.JSON {
		ops, err := patch.ToJSONPatch(from, patches)
		if err != nil {
			return err
		}
		if _, err := cc.Out.Write(append(ops, '\n')); err != nil {
			return err
		}
	} else if err := writeJSON(cc, patches); err != nil {
		return err
	}
	if len(patches) != 0 {
		return cli.ExitCodeErr(1)
	}
	return nil
}
