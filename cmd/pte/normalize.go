package main

import (
	"encoding/json"
	"fmt"

	"github.com/scott-cotton/cli"

	"github.com/signadot/ptedit/keygen"
	"github.com/signadot/ptedit/validate"
)

func normalizeDocs(cfg *NormalizeConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Normalize.Parse(cc, args)
	if err != nil {
		return err
	}
	s, err := cfg.loadSchema()
	if err != nil {
		return err
	}
	keys := keygen.NewRandom()
	repairs := 0
	for _, file := range inputs(args) {
		doc, err := readDoc(cc, file)
		if err != nil {
			return err
		}
		norm, repaired := validate.Normalize(doc, s, keys)
		if repaired {
			repairs++
			theLog.Info("repaired", "input", file, "issues", len(validate.Validate(doc, s).Issues))
		}
		if res := validate.Validate(norm, s); !res.Valid() {
			report(cc.Out, file, res, cfg.colors(cc.Out))
			return fmt.Errorf("%s cannot be repaired", file)
		}
		if cfg.Check {
			continue
		}
		if err := writeJSON(cc, norm); err != nil {
			return err
		}
	}
	if cfg.Check && repairs != 0 {
		return cli.ExitCodeErr(1)
	}
	return nil
}

func writeJSON(cc *cli.Context, v any) error {
	d, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	d = append(d, '\n')
	_, err = cc.Out.Write(d)
	return err
}
