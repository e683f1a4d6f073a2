package main

import (
	"flag"
	"fmt"
)

// usage prints helpText followed by the flag defaults of fset.
func usage(fset *flag.FlagSet, helpText string) func() {
	return func() {
		w := fset.Output()
		fmt.Fprintln(w, helpText)
		fmt.Fprintf(w, "Flags of %s:\n", fset.Name())
		fset.PrintDefaults()
	}
}
