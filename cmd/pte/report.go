package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/signadot/ptedit/validate"
)

func paint(on bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if on {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// report writes the findings of res for the named input.
func report(w io.Writer, name string, res validate.Result, colored bool) {
	ok := paint(colored, color.FgGreen)
	bad := paint(colored, color.FgRed, color.Bold)
	at := paint(colored, color.FgCyan)
	if res.Valid() {
		fmt.Fprintf(w, "%s: %s\n", name, ok.Sprint("ok"))
		return
	}
	n := len(res.Issues)
	noun := "issues"
	if n == 1 {
		noun = "issue"
	}
	fmt.Fprintf(w, "%s: %s\n", name, bad.Sprintf("%d %s", n, noun))
	for _, is := range res.Issues {
		where := "document"
		if len(is.Path) != 0 {
			where = is.Path.String()
		}
		fmt.Fprintf(w, "  %s %s: %s\n", at.Sprint(where), is.Kind, is.Reason)
	}
}
