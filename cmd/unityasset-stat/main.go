// The unityasset-stat command displays stats for a serialized file or bundle.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/env"
)

const usage = `usage: unityasset-stat [INPUT] [OUTPUT]

Reads a serialized file or bundle from INPUT, and writes to OUTPUT statistics
for the file and every file it contains.

INPUT and OUTPUT are paths to files. If INPUT is "-" or unspecified, then stdin
is used. If OUTPUT is "-" or unspecified, then stdout is used. Warnings and
errors are written to stderr.
`

type ObjectSize struct {
	File   string
	PathID int64
	Class  string
	Size   uint64
}

func (o ObjectSize) String() string {
	return fmt.Sprintf("%s:%d:%s(%d)", o.File, o.PathID, o.Class, o.Size)
}

type ObjectSizes []ObjectSize

func (p ObjectSizes) MarshalJSON() ([]byte, error) {
	list := append([]ObjectSize{}, p...)
	sort.Slice(list, func(i, j int) bool {
		return list[i].Size > list[j].Size
	})
	if len(list) > 20 {
		list = list[:20]
	}
	return json.Marshal(list)
}

type BundleStats struct {
	Name             string
	Signature        string
	Format           uint32
	Compression      string
	BlockCount       int
	EntryCount       int
	CompressedSize   int64
	UncompressedSize int64
}

type FileStats struct {
	Name          string
	Format        uint32
	EngineVersion string
	TypeCount     int
	ObjectCount   int
	Externals     []string `json:",omitempty"`
}

type Stats struct {
	Bundles []BundleStats `json:",omitempty"`
	Files   []FileStats

	// Number of raw resource entries.
	ResourceCount int

	// Number of objects overall.
	ObjectCount int

	// Number of objects per class.
	ClassCount map[string]int

	// Entries that failed to load, with their error.
	Failed map[string]string `json:",omitempty"`

	LargestObjects ObjectSizes `json:",omitempty"`
}

func (s *Stats) Fill(e *env.Environment) {
	s.ClassCount = map[string]int{}
	s.Failed = map[string]string{}
	for _, c := range e.CABs() {
		if _, err := c.State(); err != nil {
			s.Failed[c.Name] = err.Error()
			continue
		}
		switch {
		case c.Bundle != nil:
			b := BundleStats{
				Name:        c.Name,
				Signature:   c.Bundle.Signature,
				Format:      c.Bundle.FormatVersion,
				Compression: c.Bundle.Compression().String(),
				BlockCount:  len(c.Bundle.Blocks),
				EntryCount:  len(c.Bundle.Entries),
			}
			for _, blk := range c.Bundle.Blocks {
				b.CompressedSize += int64(blk.CompressedSize)
				b.UncompressedSize += int64(blk.UncompressedSize)
			}
			s.Bundles = append(s.Bundles, b)
		case c.File != nil:
			f := c.File
			s.Files = append(s.Files, FileStats{
				Name:          f.Name,
				Format:        f.Header.Version,
				EngineVersion: f.Version,
				TypeCount:     len(f.Types),
				ObjectCount:   len(f.Objects),
				Externals:     f.DependencyNames(),
			})
		default:
			s.ResourceCount++
		}
	}
	for f, obj := range e.Objects() {
		s.ObjectCount++
		s.ClassCount[obj.ClassID.String()]++
		s.LargestObjects = append(s.LargestObjects, ObjectSize{
			File:   f.Name,
			PathID: obj.PathID,
			Class:  obj.ClassID.String(),
			Size:   obj.ByteSize,
		})
	}
}

func main() {
	var output io.Writer = os.Stdout

	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()
	unityasset.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

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
		fmt.Fprintln(os.Stderr, fmt.Errorf("decode error: %w", err))
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

	var stats Stats
	stats.Fill(e)

	je := json.NewEncoder(output)
	je.SetEscapeHTML(false)
	je.SetIndent("", "\t")
	if err := je.Encode(stats); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("write error: %w", err))
	}
}
