package bundle

import (
	"bufio"
	"fmt"
	"io"
)

// Dump writes to w a readable representation of the structure of f.
func (f *File) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Signature: %s", f.Signature)
	fmt.Fprintf(bw, "\nFormat: %d", f.FormatVersion)
	fmt.Fprintf(bw, "\nEngineVersion: %q", f.EngineVersion)
	fmt.Fprintf(bw, "\nRevision: %q", f.Revision)
	fmt.Fprintf(bw, "\nSize: %d", f.Size)
	fmt.Fprintf(bw, "\nFlags: %#x (info %s)", uint32(f.Flags), f.Flags.Compression())
	fmt.Fprintf(bw, "\nBlocks: %d {", len(f.Blocks))
	for i, b := range f.Blocks {
		fmt.Fprintf(bw, "\n\t#%d: %s %d -> %d", i, b.Compression(), b.CompressedSize, b.UncompressedSize)
	}
	bw.WriteString("\n}")
	fmt.Fprintf(bw, "\nEntries: %d {", len(f.Entries))
	for i, e := range f.Entries {
		fmt.Fprintf(bw, "\n\t#%d: %q offset %d size %d flags %#x", i, e.Path, e.Offset, e.Size, e.Flags)
	}
	bw.WriteString("\n}\n")
	return bw.Flush()
}
