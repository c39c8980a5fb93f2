package main

import (
	"github.com/scott-cotton/cli"

	"github.com/signadot/ptedit/validate"
)

func validateDocs(cfg *ValidateConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Validate.Parse(cc, args)
	if err != nil {
		return err
	}
	s, err := cfg.loadSchema()
	if err != nil {
		return err
	}
	invalid := 0
	for _, file := range inputs(args) {
		doc, err := readDoc(cc, file)
		if err != nil {
			return err
		}
		res := validate.Validate(doc, s)
		if !res.Valid() {
			invalid++
		}
		if !cfg.Quiet {
			report(cc.Out, file, res, cfg.colors(cc.Out))
		}
	}
	if invalid != 0 {
		return cli.ExitCodeErr(1)
	}
	return nil
}
