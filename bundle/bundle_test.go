package bundle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/unitytools/unityasset/cursor"
)

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(b)
	return b
}

var samples = map[string][]byte{
	"empty":      {},
	"short":      []byte("abc"),
	"repetitive": bytes.Repeat([]byte("unity asset bundle "), 200),
	"random":     randomBytes(3000),
}

func TestCompressRoundTrip(t *testing.T) {
	for _, c := range []Compression{None, LZMA, LZ4, LZ4HC} {
		for name, src := range samples {
			comp, err := Compress(c, src)
			if err != nil {
				t.Fatalf("%s/%s: %s", c, name, err)
			}
			dec, err := Decompress(c, comp, len(src))
			if err != nil {
				t.Fatalf("%s/%s: %s", c, name, err)
			}
			if !bytes.Equal(dec, src) {
				t.Errorf("%s/%s: round trip mismatch", c, name)
			}
		}
	}
	if comp, _ := Compress(LZ4, samples["repetitive"]); len(comp) >= len(samples["repetitive"]) {
		t.Error("expected LZ4 to shrink repetitive data")
	}
}

func TestDecompressSizeMismatch(t *testing.T) {
	src := samples["repetitive"]
	for _, c := range []Compression{None, LZ4, LZ4HC} {
		comp, err := Compress(c, src)
		if err != nil {
			t.Fatal(err)
		}
		_, err = Decompress(c, comp, len(src)+1)
		var se *SizeError
		if !errors.As(err, &se) {
			t.Fatalf("%s: expected SizeError, got %v", c, err)
		}
		if se.Expected != int64(len(src)+1) || se.Actual != int64(len(src)) {
			t.Errorf("%s: unexpected sizes %d, %d", c, se.Expected, se.Actual)
		}
	}
}

func TestDecompressTruncated(t *testing.T) {
	src := samples["random"]
	for _, c := range []Compression{LZMA, LZ4, LZ4HC} {
		comp, err := Compress(c, src)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := Decompress(c, comp[:len(comp)/2], len(src)); err == nil {
			t.Errorf("%s: expected error for truncated block", c)
		}
	}
	if _, err := Decompress(LZHAM, nil, 0); !errors.Is(err, ErrUnsupportedCompression) {
		t.Errorf("expected ErrUnsupportedCompression, got %v", err)
	}
}

func sampleBundle(version uint32) *File {
	return &File{
		Signature:     SignatureFS,
		FormatVersion: version,
		EngineVersion: "5.x.x",
		Revision:      "2019.4.0f1",
		Entries: []Entry{
			{Path: "CAB-0123", Flags: EntrySerialized, Data: samples["repetitive"]},
			{Path: "CAB-0123.resS", Data: samples["random"]},
			{Path: "empty", Data: []byte{}},
		},
	}
}

func TestWriteParse(t *testing.T) {
	for _, version := range []uint32{6, 7, 8} {
		for _, c := range []Compression{None, LZMA, LZ4, LZ4HC} {
			for _, info := range []Compression{None, LZ4, LZMA} {
				src := sampleBundle(version)
				if version == 8 {
					src.Flags = FlagInfoNeedsPaddingAtStart
				}
				var buf bytes.Buffer
				e := Encoder{Compression: c, InfoCompression: info, BlockSize: 1000}
				if _, err := e.Encode(&buf, src); err != nil {
					t.Fatalf("v%d %s/%s: %s", version, c, info, err)
				}
				data := buf.Bytes()
				if !IsBundle(data) {
					t.Fatalf("v%d %s/%s: signature not recognized", version, c, info)
				}
				f, err := Parse(data)
				if err != nil {
					t.Fatalf("v%d %s/%s: %s", version, c, info, err)
				}
				if f.Size != int64(len(data)) || f.Flags.Compression() != info {
					t.Errorf("v%d %s/%s: unexpected header %d %#x", version, c, info, f.Size, f.Flags)
				}
				if len(f.Blocks) != 7 {
					t.Errorf("v%d %s/%s: expected 7 blocks, got %d", version, c, info, len(f.Blocks))
				}
				if len(f.Entries) != len(src.Entries) {
					t.Fatalf("v%d %s/%s: expected %d entries, got %d", version, c, info, len(src.Entries), len(f.Entries))
				}
				for i, entry := range f.Entries {
					want := src.Entries[i]
					if entry.Path != want.Path || entry.Flags != want.Flags || !bytes.Equal(entry.Data, want.Data) {
						t.Errorf("v%d %s/%s: entry %d mismatch", version, c, info, i)
					}
					if entry.Size != int64(len(entry.Data)) {
						t.Errorf("v%d %s/%s: entry %d size %d, data %d", version, c, info, i, entry.Size, len(entry.Data))
					}
				}
			}
		}
	}
}

func TestWriteToKeepsCompression(t *testing.T) {
	src := sampleBundle(7)
	var buf bytes.Buffer
	if _, err := (Encoder{Compression: LZ4HC, InfoCompression: LZ4}).Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	f, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	var again bytes.Buffer
	if _, err := f.WriteTo(&again); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again.Bytes(), buf.Bytes()) {
		t.Error("rewrite differs from original")
	}
	if e, ok := f.Entry("CAB-0123.resS"); !ok || !bytes.Equal(e.Data, samples["random"]) {
		t.Error("entry lookup failed")
	}
}

func TestTruncatedBundle(t *testing.T) {
	for _, c := range []Compression{None, LZ4} {
		var buf bytes.Buffer
		if _, err := (Encoder{Compression: c}).Encode(&buf, sampleBundle(7)); err != nil {
			t.Fatal(err)
		}
		data := buf.Bytes()
		if _, err := Parse(data[:len(data)-100]); err == nil {
			t.Errorf("%s: expected error for truncated bundle", c)
		}
	}
}

func TestCorruptBlockSize(t *testing.T) {
	f := sampleBundle(6)
	var buf bytes.Buffer
	if _, err := (Encoder{Compression: LZ4, BlockSize: 1 << 20}).Encode(&buf, f); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	// Block info is uncompressed and directly follows the 49 byte header:
	// the first block's uncompressed size is after the 16 byte hash and the
	// block count.
	at := 49 + 16 + 4
	binary.BigEndian.PutUint32(data[at:], binary.BigEndian.Uint32(data[at:])+10)
	_, err := Parse(data)
	var se *SizeError
	if !errors.As(err, &se) || se.Block != 0 {
		t.Errorf("expected SizeError for block 0, got %v", err)
	}
}

func TestImplausibleBlockSize(t *testing.T) {
	var buf bytes.Buffer
	if _, err := (Encoder{Compression: LZ4, BlockSize: 1 << 20}).Encode(&buf, sampleBundle(6)); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	binary.BigEndian.PutUint32(data[49+16+4:], 0x7FFFFFF0)
	if _, err := Parse(data); !errors.Is(err, ErrImplausibleSize) {
		t.Errorf("expected ErrImplausibleSize, got %v", err)
	}
}

func TestOversizedBlockTable(t *testing.T) {
	const blocks = 100000
	var info bytes.Buffer
	info.Write(make([]byte, 16))
	binary.Write(&info, binary.BigEndian, uint32(blocks))
	for i := 0; i < blocks; i++ {
		binary.Write(&info, binary.BigEndian, uint32(0xFFFFFFFF))
		binary.Write(&info, binary.BigEndian, uint32(0))
		binary.Write(&info, binary.BigEndian, uint16(0))
	}
	binary.Write(&info, binary.BigEndian, uint32(0))

	var buf bytes.Buffer
	buf.WriteString("UnityFS\x00")
	binary.Write(&buf, binary.BigEndian, uint32(6))
	buf.WriteString("5.x.x\x002019.4.0f1\x00")
	binary.Write(&buf, binary.BigEndian, int64(0))
	binary.Write(&buf, binary.BigEndian, uint32(info.Len()))
	binary.Write(&buf, binary.BigEndian, uint32(info.Len()))
	binary.Write(&buf, binary.BigEndian, uint32(0))
	buf.Write(info.Bytes())

	_, err := Parse(buf.Bytes())
	var se *SizeError
	if !errors.As(err, &se) || se.Block != 0 {
		t.Errorf("expected SizeError for block 0, got %v", err)
	}
}

func TestCheckSize(t *testing.T) {
	tests := []struct {
		c                Compression
		compressed, size int64
		ok               bool
	}{
		{None, 10, 10, true},
		{None, 0, 10, false},
		{LZ4, 100, 20000, true},
		{LZ4, 100, 1 << 20, false},
		{LZ4HC, 1 << 30, 0x7F000000, false},
		{LZMA, 100, 1 << 20, true},
		{LZMA, 100, -1, false},
	}
	for _, test := range tests {
		if err := CheckSize(test.c, test.compressed, test.size); (err == nil) != test.ok {
			t.Errorf("%s %d->%d: unexpected result %v", test.c, test.compressed, test.size, err)
		}
	}
}

func TestEntryRange(t *testing.T) {
	f := &File{Entries: []Entry{{Path: "a", Offset: 10, Size: 10}}}
	if err := f.sliceEntries(make([]byte, 15)); !errors.Is(err, ErrEntryRange) {
		t.Errorf("expected ErrEntryRange, got %v", err)
	}
	f = &File{Entries: []Entry{{Path: "a", Offset: 0, Size: 10}, {Path: "b", Offset: 5, Size: 10}}}
	if err := f.sliceEntries(make([]byte, 15)); !errors.Is(err, ErrEntryRange) {
		t.Errorf("expected ErrEntryRange for oversized total, got %v", err)
	}
}

func legacyBundle(t *testing.T, sig string, version uint32, entries []Entry) []byte {
	t.Helper()
	var body bytes.Buffer
	bw := cursor.NewWriter(&body, binary.BigEndian)
	bw.I32(int32(len(entries)))
	tableSize := 4
	for _, e := range entries {
		tableSize += len(e.Path) + 1 + 8
	}
	off := tableSize
	for _, e := range entries {
		bw.CString(e.Path)
		bw.U32(uint32(off))
		bw.U32(uint32(len(e.Data)))
		off += len(e.Data)
	}
	for _, e := range entries {
		bw.Bytes(e.Data)
	}
	if _, err := bw.End(); err != nil {
		t.Fatal(err)
	}
	payload := body.Bytes()
	if sig == SignatureWeb {
		var err error
		if payload, err = compressLZMA(payload, false); err != nil {
			t.Fatal(err)
		}
	}

	var head bytes.Buffer
	hw := cursor.NewWriter(&head, binary.BigEndian)
	hw.CString(sig)
	hw.U32(version)
	hw.CString("3.x.x")
	hw.CString("3.5.7f6")
	if version >= 4 {
		hw.Bytes(make([]byte, 16))
		hw.U32(0)
	}
	hw.U32(0)
	headerAt := hw.Pos()
	hw.U32(0)
	hw.U32(1)
	hw.U32(1)
	hw.U32(uint32(len(payload)))
	hw.U32(uint32(body.Len()))
	if version >= 2 {
		hw.U32(0)
	}
	if version >= 3 {
		hw.U32(0)
	}
	hw.Align(4)
	if _, err := hw.End(); err != nil {
		t.Fatal(err)
	}
	out := head.Bytes()
	binary.BigEndian.PutUint32(out[headerAt:], uint32(len(out)))
	return append(out, payload...)
}

func TestLegacy(t *testing.T) {
	entries := []Entry{
		{Path: "CAB-legacy", Data: samples["repetitive"]},
		{Path: "CAB-legacy.resS", Data: samples["short"]},
	}
	for _, sig := range []string{SignatureRaw, SignatureWeb} {
		for _, version := range []uint32{1, 3, 4} {
			data := legacyBundle(t, sig, version, entries)
			f, err := Parse(data)
			if err != nil {
				t.Fatalf("%s %d: %s", sig, version, err)
			}
			if len(f.Entries) != 2 {
				t.Fatalf("%s %d: expected 2 entries, got %d", sig, version, len(f.Entries))
			}
			for i, e := range f.Entries {
				if e.Path != entries[i].Path || !bytes.Equal(e.Data, entries[i].Data) {
					t.Errorf("%s %d: entry %d mismatch", sig, version, i)
				}
			}
			if f.Entries[0].Flags != EntrySerialized || f.Entries[1].Flags != 0 {
				t.Errorf("%s %d: unexpected entry flags", sig, version)
			}
			if _, err := f.WriteTo(&bytes.Buffer{}); !errors.Is(err, ErrUnsupported) {
				t.Errorf("%s %d: expected ErrUnsupported on write, got %v", sig, version, err)
			}
		}
	}
}

func TestNotBundle(t *testing.T) {
	if IsBundle([]byte("UnityFSX")) || IsBundle(nil) {
		t.Error("unexpected bundle detection")
	}
	if _, err := Parse([]byte("SomethingElse\x00\x00\x00\x00\x06a\x00b\x00")); !errors.Is(err, ErrNotBundle) {
		t.Errorf("expected ErrNotBundle, got %v", err)
	}
	if _, err := Parse([]byte("UnityFS")); !errors.Is(err, ErrNotBundle) {
		t.Errorf("expected ErrNotBundle for short data, got %v", err)
	}
	if _, err := Parse([]byte("UnityFS\x00\x00\x00\x00\x09a\x00b\x00")); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	if err := sampleBundle(7).Dump(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"CAB-0123.resS"`) {
		t.Error("dump missing entry path")
	}
}
