package serialized

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"unicode"

	"github.com/unitytools/unityasset/errors"
)

// Dump writes to w a readable representation of the structure of f: header,
// types, objects and externals. When data is true, the raw bytes of each
// object are included.
func (f *File) Dump(w io.Writer, data bool) error {
	if w == nil {
		return errors.New("nil writer")
	}
	bw := bufio.NewWriter(w)
	h := f.Header
	fmt.Fprintf(bw, "Name: %q", f.Name)
	fmt.Fprintf(bw, "\nFormat: %d", h.Version)
	fmt.Fprintf(bw, "\nEndian: %d", h.Endian)
	fmt.Fprintf(bw, "\nMetadataSize: %d", h.MetadataSize)
	fmt.Fprintf(bw, "\nFileSize: %d", h.FileSize)
	fmt.Fprintf(bw, "\nDataOffset: %d", h.DataOffset)
	bw.WriteString("\nEngineVersion: ")
	dumpString(bw, 0, f.EngineVersion)
	if f.Version != f.EngineVersion {
		fmt.Fprintf(bw, " (using %q)", f.Version)
	}
	fmt.Fprintf(bw, "\nPlatform: %d", f.Platform)
	fmt.Fprintf(bw, "\nTypeTreeEnabled: %t", f.TypeTreeEnabled)

	fmt.Fprintf(bw, "\nTypes: %d {", len(f.Types))
	for i, t := range f.Types {
		dumpType(bw, 1, i, t)
	}
	bw.WriteString("\n}")

	fmt.Fprintf(bw, "\nObjects: %d {", len(f.order))
	for _, id := range f.order {
		obj := f.Objects[id]
		dumpNewline(bw, 1)
		fmt.Fprintf(bw, "%d: %s {", obj.PathID, obj.ClassID)
		dumpNewline(bw, 2)
		fmt.Fprintf(bw, "Offset: %d", obj.ByteStart)
		dumpNewline(bw, 2)
		fmt.Fprintf(bw, "Size: %d", obj.ByteSize)
		dumpNewline(bw, 2)
		fmt.Fprintf(bw, "TypeID: %d", obj.TypeID)
		if obj.ScriptTypeIndex >= 0 {
			dumpNewline(bw, 2)
			fmt.Fprintf(bw, "ScriptTypeIndex: %d", obj.ScriptTypeIndex)
		}
		if name, err := f.ObjectName(id); err == nil && name != "" {
			dumpNewline(bw, 2)
			bw.WriteString("Name: ")
			dumpString(bw, 2, name)
		}
		if data {
			dumpNewline(bw, 2)
			bw.WriteString("Data: ")
			dumpBytes(bw, 2, f.objectData(obj))
		}
		dumpNewline(bw, 1)
		bw.WriteByte('}')
	}
	bw.WriteString("\n}")

	if len(f.ScriptTypes) > 0 {
		fmt.Fprintf(bw, "\nScriptTypes: %d {", len(f.ScriptTypes))
		for i, s := range f.ScriptTypes {
			dumpNewline(bw, 1)
			fmt.Fprintf(bw, "#%d: file %d, path %d", i, s.LocalSerializedFileIndex, s.LocalIdentifierInFile)
		}
		bw.WriteString("\n}")
	}

	fmt.Fprintf(bw, "\nExternals: %d {", len(f.Externals))
	for i, e := range f.Externals {
		dumpNewline(bw, 1)
		fmt.Fprintf(bw, "#%d: ", i+1)
		dumpString(bw, 1, e.Path)
		fmt.Fprintf(bw, " (type %d, guid %x)", e.Type, e.GUID)
	}
	bw.WriteString("\n}")

	if len(f.RefTypes) > 0 {
		fmt.Fprintf(bw, "\nRefTypes: %d {", len(f.RefTypes))
		for i, t := range f.RefTypes {
			dumpType(bw, 1, i, t)
		}
		bw.WriteString("\n}")
	}
	if f.UserInformation != "" {
		bw.WriteString("\nUserInformation: ")
		dumpString(bw, 0, f.UserInformation)
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

func dumpType(w *bufio.Writer, indent, i int, t *Type) {
	dumpNewline(w, indent)
	fmt.Fprintf(w, "#%d: %s", i, t.ClassID)
	if t.ClassName != "" {
		fmt.Fprintf(w, " %s.%s (%s)", t.Namespace, t.ClassName, t.AssemblyName)
	}
	if t.IsStripped {
		w.WriteString(" (stripped)")
	}
	if t.ScriptTypeIndex >= 0 {
		fmt.Fprintf(w, " (script %d)", t.ScriptTypeIndex)
	}
	if t.Tree == nil {
		w.WriteString(" (no tree)")
		return
	}
	fmt.Fprintf(w, " (%d nodes)", t.Tree.Count())
}

func dumpNewline(w *bufio.Writer, indent int) {
	w.WriteByte('\n')
	for i := 0; i < indent; i++ {
		w.WriteByte('\t')
	}
}

func dumpString(w *bufio.Writer, indent int, s string) {
	for _, r := range s {
		if !unicode.IsGraphic(r) {
			dumpBytes(w, indent, []byte(s))
			return
		}
	}
	fmt.Fprintf(w, "(len:%d) ", len(s))
	w.WriteString(strconv.Quote(s))
}

func dumpBytes(w *bufio.Writer, indent int, b []byte) {
	fmt.Fprintf(w, "(len:%d)", len(b))
	const width = 16
	for j := 0; j < len(b); j += width {
		dumpNewline(w, indent+1)
		w.WriteString("| ")
		for i := j; i < j+width; {
			if i < len(b) {
				s := strconv.FormatUint(uint64(b[i]), 16)
				if len(s) == 1 {
					w.WriteString("0")
				}
				w.WriteString(s)
			} else if len(b) < width {
				break
			} else {
				w.WriteString("  ")
			}
			i++
			if i%8 == 0 && i < j+width {
				w.WriteString("  ")
			} else {
				w.WriteString(" ")
			}
		}
		w.WriteString("|")
		n := len(b)
		if j+width < n {
			n = j + width
		}
		for i := j; i < n; i++ {
			if 32 <= b[i] && b[i] <= 126 {
				w.WriteRune(rune(b[i]))
			} else {
				w.WriteByte('.')
			}
		}
		w.WriteByte('|')
	}
}
