// Command panelcsv writes a dataset view as CSV to stdout or a file.
//
// Usage:
//
//	panelcsv -list
//	panelcsv [-view raw] [-o out.csv] <dataset>
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"panelcore/internal/catalog"
	"panelcore/pkg/frame"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("panelcsv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	list := fs.Bool("list", false, "list datasets and views instead of exporting")
	view := fs.String("view", catalog.ViewRaw, "view to materialize")
	out := fs.String("o", "", "write to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cat, err := catalog.Default()
	if err != nil {
		fmt.Fprintf(stderr, "panelcsv: load catalog: %v\n", err)
		return 1
	}

	if *list {
		printCatalog(stdout, cat)
		return 0
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "panelcsv: exactly one dataset key required (use -list to see them)")
		return 2
	}
	key := fs.Arg(0)

	dataset, ok := cat.Get(key)
	if !ok {
		fmt.Fprintf(stderr, "panelcsv: unknown dataset %q\n", key)
		return 1
	}
	table, err := dataset.View(*view)
	if err != nil {
		fmt.Fprintf(stderr, "panelcsv: %v\n", err)
		return 1
	}

	dst := stdout
	if *out != "" {
		file, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(stderr, "panelcsv: %v\n", err)
			return 1
		}
		defer func() {
			if err := file.Close(); err != nil {
				fmt.Fprintf(stderr, "panelcsv: close %s: %v\n", *out, err)
			}
		}()
		dst = file
	}
	if err := frame.WriteCSV(dst, table); err != nil {
		fmt.Fprintf(stderr, "panelcsv: write csv: %v\n", err)
		return 1
	}
	return 0
}

func printCatalog(w io.Writer, cat *catalog.Catalog) {
	keys := cat.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		dataset, _ := cat.Get(key)
		info := dataset.Info()
		fmt.Fprintf(w, "%-22s %5d rows  views: %v\n", key, info.Rows, info.Views)
	}
}
