// The unityasset-dcomp command rewrites a bundle with decompressed blocks.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/unitytools/unityasset/bundle"
)

const usage = `usage: unityasset-dcomp [-c COMPRESSION] [-b SIZE] [INPUT] [OUTPUT]

Reads a UnityFS, UnityRaw or UnityWeb bundle from INPUT, and writes to OUTPUT
the same bundle as UnityFS, but with uncompressed blocks.

INPUT and OUTPUT are paths to files. If INPUT is "-" or unspecified, then stdin
is used. If OUTPUT is "-" or unspecified, then stdout is used. Warnings and
errors are written to stderr.

Options:
`

func main() {
	var input io.Reader = os.Stdin
	var output io.Writer = os.Stdout

	compression := flag.String("c", "None", "block compression of the output: None, LZMA, LZ4 or LZ4HC")
	blockSize := flag.Int("b", bundle.DefaultBlockSize, "uncompressed size of each output block")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	comp, ok := bundle.CompressionFromString(*compression)
	if !ok || comp == bundle.LZHAM {
		fmt.Fprintf(os.Stderr, "unknown compression %q\n", *compression)
		os.Exit(2)
	}

	args := flag.Args()
	if len(args) >= 1 && args[0] != "-" {
		in, err := os.Open(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("open input: %w", err))
			return
		}
		input = in
		defer in.Close()
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

	data, err := io.ReadAll(input)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("read input: %w", err))
		return
	}
	f, err := bundle.Parse(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("decode error: %w", err))
		return
	}
	if f.Signature != bundle.SignatureFS {
		f.Signature = bundle.SignatureFS
		f.FormatVersion = 6
		f.Flags = 0
	}
	e := bundle.Encoder{Compression: comp, InfoCompression: bundle.None, BlockSize: *blockSize}
	if _, err := e.Encode(output, f); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("encode error: %w", err))
	}
}
