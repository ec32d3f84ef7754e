package env_test

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/assettest"
	"github.com/unitytools/unityasset/bundle"
	"github.com/unitytools/unityasset/classes"
	"github.com/unitytools/unityasset/env"
	"github.com/unitytools/unityasset/serialized"
)

func quiet(log *bytes.Buffer) env.Option {
	s := unityasset.DefaultSettings()
	if log == nil {
		log = &bytes.Buffer{}
	}
	s.Logger = slog.New(slog.NewTextHandler(log, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return env.WithSettings(s)
}

func TestVariants(t *testing.T) {
	for _, c := range []struct {
		name string
		want []string
	}{
		{"foo.bar", []string{"foo.bar", "foo.resource", "foo.assets.resS", "foo.resS"}},
		{"CAB-x", []string{"CAB-x", "CAB-x.resource", "CAB-x.assets.resS", "CAB-x.resS"}},
	} {
		if got := env.Variants(c.name); !reflect.DeepEqual(got, c.want) {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestGetCABOrder(t *testing.T) {
	e := env.New(quiet(nil))
	if _, ok := e.GetCAB("foo.bar"); ok {
		t.Fatal("unexpected hit in empty environment")
	}
	for i, name := range []string{"foo.resS", "foo.assets.resS", "foo.resource", "foo.bar"} {
		if err := e.Load(name, []byte{byte(i)}, env.KindRaw); err != nil {
			t.Fatal(err)
		}
		c, ok := e.GetCAB("foo.bar")
		if !ok || c.Name != name {
			t.Errorf("after loading %s: unexpected lookup result %v", name, c)
		}
	}
}

func TestReadResource(t *testing.T) {
	e := env.New(quiet(nil))
	data := make([]byte, 120)
	for i := range data {
		data[i] = byte(i)
	}
	if err := e.Load("data.resS", data, env.KindRaw); err != nil {
		t.Fatal(err)
	}
	if err := e.LoadBytes("CAB-main", assettest.NewFile(t, "CAB-main").Text(1, "a", "b").Bytes()); err != nil {
		t.Fatal(err)
	}

	b, err := e.ReadResource("data.resS", 10, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, []byte{10, 11, 12, 13, 14}) || cap(b) != 5 {
		t.Errorf("unexpected slice %v (cap %d)", b, cap(b))
	}
	if b, err := e.ReadResource("data.assets", 0, 120); err != nil || len(b) != 120 {
		t.Errorf("expected lookup through variant, got %d bytes, %v", len(b), err)
	}

	_, err = e.ReadResource("data.resS", 50, 100)
	var re *env.RangeError
	if !errors.As(err, &re) {
		t.Fatalf("expected RangeError, got %v", err)
	}
	if re.Offset != 50 || re.Requested != 100 || re.Available != 70 {
		t.Errorf("unexpected range error %+v", re)
	}
	if !strings.Contains(err.Error(), "requested 100 bytes at offset 50, 70 bytes available") {
		t.Errorf("unexpected message %q", err)
	}
	for _, c := range [][2]int64{{-1, 4}, {4, -1}, {121, 0}} {
		if _, err := e.ReadResource("data.resS", c[0], c[1]); !errors.As(err, &re) {
			t.Errorf("offset %d size %d: expected RangeError, got %v", c[0], c[1], err)
		}
	}
	if b, err := e.ReadResource("data.resS", 120, 0); err != nil || len(b) != 0 {
		t.Errorf("expected empty read at end, got %v, %v", b, err)
	}

	if _, err := e.ReadResource("CAB-main", 0, 1); !errors.Is(err, env.ErrNotRaw) {
		t.Errorf("expected ErrNotRaw, got %v", err)
	}
	var nf *env.NotFoundError
	if _, err := e.ReadResource("missing", 0, 1); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

// countingFS records the names opened through it.
type countingFS struct {
	fs.FS
	opened []string
}

func (c *countingFS) Open(name string) (fs.File, error) {
	c.opened = append(c.opened, name)
	return c.FS.Open(name)
}

func TestResolveLoadsDependencies(t *testing.T) {
	dep := assettest.NewFile(t, "CAB-dep").Text(1, "shared", "from dependency").Bytes()
	main := assettest.NewFile(t, "CAB-main", "CAB-dep", "CAB-gone").Text(1, "local", "x").Bytes()
	src := &countingFS{FS: fstest.MapFS{
		"CAB-dep":       {Data: dep},
		"CAB-main.resS": {Data: []byte("stream data")},
	}}
	var log bytes.Buffer
	e := env.New(quiet(&log), env.WithFS(src))
	if err := e.LoadBytes("CAB-main", main); err != nil {
		t.Fatal(err)
	}
	f, ok := e.File("CAB-main")
	if !ok {
		t.Fatal("main file not registered")
	}
	if s, _ := e.State("CAB-dep"); s != env.Unloaded {
		t.Errorf("expected dependency to be unloaded, got %s", s)
	}

	file, obj, err := f.ResolvePPtr(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if file.Name != "CAB-dep" || obj.ClassID != unityasset.ClassTextAsset {
		t.Errorf("unexpected resolution %s %v", file.Name, obj)
	}
	if s, err := e.State("CAB-dep"); s != env.Loaded || err != nil {
		t.Errorf("expected dependency to be loaded, got %s, %v", s, err)
	}
	if !strings.Contains(log.String(), "level=WARN msg=\"dependency load failed\" name=CAB-gone") {
		t.Errorf("expected warning for missing dependency, got:\n%s", log.String())
	}

	b, err := f.ReadResource("archive:/CAB-main/CAB-main.resS", 0, 6)
	if err != nil || string(b) != "stream" {
		t.Errorf("unexpected resource %q, %v", b, err)
	}

	src.opened = nil
	_, err = e.Resolve(f, "missing.bin")
	var nf *env.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if !reflect.DeepEqual(nf.Tried, env.Variants("missing.bin")) {
		t.Errorf("unexpected tried names %v", nf.Tried)
	}
	var missing []string
	for _, name := range src.opened {
		if strings.HasPrefix(name, "missing") {
			missing = append(missing, name)
		}
	}
	if !reflect.DeepEqual(missing, env.Variants("missing.bin")) {
		t.Errorf("expected each variant to be tried once, got %v", missing)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	dep := assettest.NewFile(t, "CAB-dep").Text(3, "shared", "y").Bytes()
	main := assettest.NewFile(t, "level0", "CAB-dep").Text(1, "local", "x").Bytes()
	if err := os.WriteFile(filepath.Join(dir, "CAB-dep"), dep, 0o666); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "level0"), main, 0o666); err != nil {
		t.Fatal(err)
	}
	e := env.New(quiet(nil))
	if err := e.LoadFile(filepath.Join(dir, "level0")); err != nil {
		t.Fatal(err)
	}
	f, _ := e.File("level0")
	if err := f.LoadDependencies(); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.File("CAB-dep"); !ok {
		t.Error("dependency not loaded from the directory of the file")
	}
	if err := e.LoadFile(filepath.Join(dir, "absent")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestBundleIngestion(t *testing.T) {
	cab := assettest.NewFile(t, "CAB-a").Text(1, "readme", "hello").Bytes()
	bad := append([]byte(nil), cab...)
	for i := 48; i < len(bad); i++ {
		bad[i] = 0xFF
	}
	nested := assettest.Bundle(t, bundle.Entry{Path: "x", Data: []byte("x")})
	data := assettest.Bundle(t,
		bundle.Entry{Path: "CAB-a", Flags: bundle.EntrySerialized, Data: cab},
		bundle.Entry{Path: "CAB-a.resS", Data: []byte("0123456789")},
		bundle.Entry{Path: "CAB-bad", Flags: bundle.EntrySerialized, Data: bad},
		bundle.Entry{Path: "nested.bundle", Data: nested[:len(nested)-4]},
	)

	var log bytes.Buffer
	e := env.New(quiet(&log))
	if err := e.LoadBytes("game.bundle", data); err != nil {
		t.Fatal(err)
	}

	for name, want := range map[string]env.State{
		"game.bundle":   env.Loaded,
		"CAB-a":         env.Loaded,
		"CAB-a.resS":    env.Loaded,
		"CAB-bad":       env.Failed,
		"nested.bundle": env.Failed,
		"CAB-z":         env.Unloaded,
	} {
		s, err := e.State(name)
		if s != want {
			t.Errorf("%s: expected state %s, got %s", name, want, s)
		}
		if (s == env.Failed) != (err != nil) {
			t.Errorf("%s: unexpected error %v for state %s", name, err, s)
		}
	}

	_, first := e.State("CAB-bad")
	var le *env.LoadError
	if !errors.As(first, &le) || le.Name != "CAB-bad" {
		t.Errorf("expected LoadError, got %v", first)
	}
	if err := e.LoadBytes("CAB-bad", cab); err != first {
		t.Errorf("expected retained error on reload, got %v", err)
	}
	if n := strings.Count(log.String(), "msg=\"bundle entry failed\""); n != 2 {
		t.Errorf("expected 2 entry failures logged, got %d", n)
	}
	if n := strings.Count(log.String(), "msg=\"bundle entry ingested\""); n != 2 {
		t.Errorf("expected 2 entries ingested, got %d", n)
	}

	c, ok := e.GetCAB("CAB-a")
	if !ok || c.Parent != "game.bundle" || c.Kind != env.KindSerialized {
		t.Errorf("unexpected entry %+v", c)
	}
	f, _ := e.File("CAB-a")
	ta, err := classes.ReadTextAsset(f, 1)
	if err != nil || string(ta.Script) != "hello" {
		t.Errorf("unexpected text asset %v, %v", ta, err)
	}
	b, err := f.ReadResource("archive:/CAB-a/CAB-a.resS", 2, 3)
	if err != nil || string(b) != "234" {
		t.Errorf("unexpected resource %q, %v", b, err)
	}
}

func TestClassify(t *testing.T) {
	for _, c := range []struct {
		data []byte
		want env.Kind
	}{
		{assettest.Bundle(t), env.KindBundle},
		{assettest.NewFile(t, "x").Bytes(), env.KindSerialized},
		{[]byte("plain"), env.KindRaw},
		{nil, env.KindRaw},
	} {
		if got := env.Classify(c.data); got != c.want {
			t.Errorf("expected %s, got %s", c.want, got)
		}
	}
}

func TestDedup(t *testing.T) {
	data := assettest.NewFile(t, "CAB-a").Text(1, "a", "b").Bytes()
	var log bytes.Buffer
	e := env.New(quiet(&log))
	if err := e.LoadBytes("CAB-a", data); err != nil {
		t.Fatal(err)
	}
	if err := e.LoadBytes("copy", data); err != nil {
		t.Fatal(err)
	}
	if n := len(e.CABs()); n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}
	if names := e.Names(); !reflect.DeepEqual(names, []string{"CAB-a", "copy"}) {
		t.Errorf("unexpected names %v", names)
	}
	a, _ := e.File("CAB-a")
	b, _ := e.File("copy")
	if a != b {
		t.Error("expected alias to share the file")
	}
	if !strings.Contains(log.String(), "duplicate content") {
		t.Error("expected duplicate to be logged")
	}
}

func TestContainer(t *testing.T) {
	fb := assettest.NewFile(t, "CAB-main", "CAB-dep").Text(2, "local", "x").Bundle(1, "main",
		assettest.Asset{Path: "assets/local.txt", FileID: 0, PathID: 2},
		assettest.Asset{Path: "assets/shared.txt", FileID: 1, PathID: 7},
	)
	e := env.New(quiet(nil))
	if err := e.LoadBytes("CAB-main", fb.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := e.LoadBytes("CAB-dep", assettest.NewFile(t, "CAB-dep").Text(7, "shared", "y").Bytes()); err != nil {
		t.Fatal(err)
	}
	index, err := e.Container()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]env.ObjectRef{
		"assets/local.txt":  {File: "CAB-main", PathID: 2},
		"assets/shared.txt": {File: "CAB-dep", PathID: 7},
	}
	if !reflect.DeepEqual(index, want) {
		t.Errorf("unexpected container %v", index)
	}
	f, obj, err := e.Object(index["assets/shared.txt"])
	if err != nil || f.Name != "CAB-dep" || obj.PathID != 7 {
		t.Errorf("unexpected object %v, %v", obj, err)
	}

	var count int
	for range e.Objects() {
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 objects, got %d", count)
	}
}

func TestReleasedEnvironment(t *testing.T) {
	load := func() *serialized.File {
		e := env.New(quiet(nil))
		if err := e.LoadBytes("CAB-a", assettest.NewFile(t, "CAB-a", "CAB-b").Text(1, "a", "b").Bytes()); err != nil {
			t.Fatal(err)
		}
		f, _ := e.File("CAB-a")
		return f
	}
	f := load()
	var err error
	for i := 0; i < 10; i++ {
		runtime.GC()
		if _, err = f.ReadResource("CAB-a.resS", 0, 1); errors.Is(err, env.ErrReleased) {
			break
		}
	}
	if !errors.Is(err, env.ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}
	if _, _, err := f.ResolvePPtr(1, 1); !errors.Is(err, env.ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}
}

func TestProcessSettingsReadOnLoad(t *testing.T) {
	saved := unityasset.CurrentSettings()
	t.Cleanup(func() { unityasset.SetSettings(saved) })
	var log bytes.Buffer
	unityasset.SetLogger(slog.New(slog.NewTextHandler(&log, nil)))
	if err := unityasset.SetFallbackVersion(""); err != nil {
		t.Fatal(err)
	}

	versionless := func(name, script string) []byte {
		b := assettest.NewFile(t, name).Text(1, name, script)
		b.File.EngineVersion = ""
		return b.Bytes()
	}

	e := env.New()
	if err := e.LoadBytes("CAB-a", versionless("CAB-a", "first")); !errors.Is(err, unityasset.ErrNoVersion) {
		t.Fatalf("expected ErrNoVersion, got %v", err)
	}
	if err := unityasset.SetFallbackVersion("2019.4.0f1"); err != nil {
		t.Fatal(err)
	}
	if err := e.LoadBytes("CAB-b", versionless("CAB-b", "second")); err != nil {
		t.Fatalf("expected fallback set after New to apply, got %v", err)
	}
	f, ok := e.File("CAB-b")
	if !ok || f.Version != "2019.4.0f1" {
		t.Errorf("expected fallback version, got %+v", f)
	}
	if !strings.Contains(log.String(), "using fallback engine version") {
		t.Errorf("expected fallback warning in log, got %q", log.String())
	}
}
