// The unityasset-index command exports files to a bolt database.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.etcd.io/bbolt"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/env"
	"github.com/unitytools/unityasset/index"
)

const usage = `usage: unityasset-index [-o DB] [-skip-objects] [-deps] INPUT...

Loads each serialized file or bundle INPUT, and writes to the bolt database DB
the container index of the loaded files, a summary of each file, and every
decoded object. Dependencies are looked up next to each INPUT.

Warnings and errors are written to stderr.

Options:
`

func main() {
	out := flag.String("o", "index.db", "path of the database to write")
	skipObjects := flag.Bool("skip-objects", false, "write only the container index and file summaries")
	deps := flag.Bool("deps", false, "load the declared dependencies of every file")
	fallback := flag.String("fallback", "", "engine version for files that declare none")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	unityasset.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	if err := unityasset.SetFallbackVersion(*fallback); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("fallback version: %w", err))
		os.Exit(2)
	}

	e := env.New()
	for _, p := range flag.Args() {
		if err := e.LoadFile(p); err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("load error: %w", err))
		}
	}
	if *deps {
		for _, f := range e.Files() {
			if err := f.LoadDependencies(); err != nil {
				fmt.Fprintln(os.Stderr, fmt.Errorf("dependency warning: %w", err))
			}
		}
	}

	db, err := bbolt.Open(*out, 0666, &bbolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("open database: %w", err))
		return
	}
	defer db.Close()

	warn, err := index.Write(db, e, index.Options{SkipObjects: *skipObjects})
	if warn != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("index warning: %w", warn))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("index error: %w", err))
	}
}
