// The unityasset-dump command displays the structure of a serialized file or
// bundle.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/env"
)

const usage = `usage: unityasset-dump [-data] [-object ID [-file NAME]] [-fallback VERSION] [INPUT] [OUTPUT]

Reads a serialized file or bundle from INPUT, and writes to OUTPUT a readable
representation of its structure. Every file within a bundle is dumped in turn.
With -object, the object with path id ID is decoded and written as JSON
instead.

INPUT and OUTPUT are paths to files. If INPUT is "-" or unspecified, then stdin
is used. If OUTPUT is "-" or unspecified, then stdout is used. Warnings and
errors are written to stderr.

Options:
`

func main() {
	var output io.Writer = os.Stdout

	data := flag.Bool("data", false, "include the raw bytes of each object")
	object := flag.Int64("object", 0, "decode the object with this path id")
	file := flag.String("file", "", "file holding the object; defaults to the first serialized file")
	fallback := flag.String("fallback", "", "engine version for files that declare none")
	verbose := flag.Bool("v", false, "log debug messages")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	unityasset.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	if err := unityasset.SetFallbackVersion(*fallback); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("fallback version: %w", err))
		os.Exit(2)
	}

	e := env.New()
	args := flag.Args()
	var err error
	if len(args) >= 1 && args[0] != "-" {
		err = e.LoadFile(args[0])
	} else {
		var b []byte
		if b, err = io.ReadAll(os.Stdin); err == nil {
			err = e.LoadBytes("stdin", b)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("load error: %w", err))
		return
	}
	if len(args) >= 2 && args[1] != "-" {
		out, err := os.Create(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("create output: %w", err))
			return
		}
		defer out.Close()
		defer func() {
			err := out.Sync()
			if err != nil {
				fmt.Fprintln(os.Stderr, fmt.Errorf("sync output: %w", err))
				return
			}
		}()
		output = out
	}

	if *object != 0 {
		if err := dumpObject(output, e, *file, *object); err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("decode error: %w", err))
		}
		return
	}
	if err := dump(output, e, *data); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("write error: %w", err))
	}
}

func dump(w io.Writer, e *env.Environment, data bool) error {
	for _, c := range e.CABs() {
		fmt.Fprintf(w, "== %s (%s", c.Name, c.Kind)
		if c.Parent != "" {
			fmt.Fprintf(w, " in %s", c.Parent)
		}
		fmt.Fprintln(w, ") ==")
		if _, err := c.State(); err != nil {
			fmt.Fprintf(w, "Error: %s\n\n", err)
			continue
		}
		var err error
		switch {
		case c.Bundle != nil:
			err = c.Bundle.Dump(w)
		case c.File != nil:
			err = c.File.Dump(w, data)
		default:
			_, err = fmt.Fprintf(w, "Size: %d\n", len(c.Data))
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

func dumpObject(w io.Writer, e *env.Environment, name string, pathID int64) error {
	files := e.Files()
	if len(files) == 0 {
		return fmt.Errorf("no serialized files loaded")
	}
	f := files[0]
	if name != "" {
		var ok bool
		if f, ok = e.File(name); !ok {
			return fmt.Errorf("no serialized file %q", name)
		}
	}
	v, err := f.Decode(pathID)
	if err != nil {
		return err
	}
	b, err := unityasset.MarshalJSON(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, b, "", "\t"); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(w)
	return err
}
