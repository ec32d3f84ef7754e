// Package env implements the environment: a registry of loaded files that
// resolves names across serialized files, bundles and resource streams.
//
// An Environment owns every file loaded into it. Files refer back to their
// environment only weakly, through a handle, so a file kept alive by a caller
// does not keep its environment alive. Bundles are unpacked on load, and each
// entry is registered under its own name exactly as if it had been loaded on
// its own.
//
// An Environment is not safe for concurrent use.
package env

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"weak"

	"golang.org/x/crypto/blake2b"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/bundle"
	"github.com/unitytools/unityasset/serialized"
	"github.com/unitytools/unityasset/typetree"
)

// Kind is the format of a loaded buffer.
type Kind uint8

const (
	KindRaw Kind = iota
	KindSerialized
	KindBundle
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindSerialized:
		return "serialized"
	case KindBundle:
		return "bundle"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Classify determines the kind of data by its content.
func Classify(data []byte) Kind {
	switch {
	case bundle.IsBundle(data):
		return KindBundle
	case serialized.IsSerializedFile(data):
		return KindSerialized
	}
	return KindRaw
}

// State is the load state of a registered name.
type State uint8

const (
	Unloaded State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// CAB is an entry of the registry.
type CAB struct {
	// Name is the name the entry was first registered under.
	Name string
	Kind Kind
	// Parent is the name of the bundle the entry was unpacked from, if any.
	Parent string
	Data   []byte

	// File is set for serialized entries that loaded successfully.
	File *serialized.File
	// Bundle is set for bundle entries that loaded successfully.
	Bundle *bundle.File

	state State
	err   error
}

// State returns the load state of the entry, and the error that caused it to
// fail, if any.
func (c *CAB) State() (State, error) {
	return c.state, c.err
}

// Environment is a registry of loaded files.
type Environment struct {
	settings *unityasset.Settings
	cache    *typetree.Cache
	sources  []fs.FS
	dirs     map[string]bool

	cabs     []*CAB
	byName   map[string]int
	byDigest map[[blake2b.Size256]byte]int

	host *handle
}

// Option configures an Environment.
type Option func(*Environment)

// WithSettings makes the environment use s instead of the process-wide
// settings. Without it, the process-wide settings are read on every load.
func WithSettings(s unityasset.Settings) Option {
	return func(e *Environment) { e.settings = &s }
}

// WithCache sets the type tree cache shared by the files of the environment.
func WithCache(c *typetree.Cache) Option {
	return func(e *Environment) { e.cache = c }
}

// WithFS adds a file system searched when loading dependencies.
func WithFS(fsys fs.FS) Option {
	return func(e *Environment) { e.sources = append(e.sources, fsys) }
}

// New returns an empty environment.
func New(opts ...Option) *Environment {
	e := &Environment{
		cache:    typetree.DefaultCache,
		dirs:     map[string]bool{},
		byName:   map[string]int{},
		byDigest: map[[blake2b.Size256]byte]int{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.host = &handle{env: weak.Make(e)}
	return e
}

func (e *Environment) log(level slog.Level, msg string, attrs ...slog.Attr) {
	e.currentSettings().Log().LogAttrs(context.Background(), level, msg, attrs...)
}

// currentSettings returns the injected settings, or the process-wide
// settings in effect now.
func (e *Environment) currentSettings() unityasset.Settings {
	if e.settings != nil {
		return *e.settings
	}
	return unityasset.CurrentSettings()
}

// LoadFile reads the file at p and loads it under its base name. The
// directory of p is added to the sources searched for dependencies.
func (e *Environment) LoadFile(p string) error {
	data, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(p); !e.dirs[dir] {
		e.dirs[dir] = true
		e.sources = append(e.sources, os.DirFS(dir))
	}
	return e.LoadBytes(filepath.Base(p), data)
}

// LoadBytes loads data under name, classifying it by content.
func (e *Environment) LoadBytes(name string, data []byte) error {
	return e.Load(name, data, Classify(data))
}

// Load loads data of the given kind under name. Loading a name that is
// already registered does nothing, and returns the error retained by the
// entry if it failed. Data identical to an entry already loaded is not parsed
// again; name becomes an alias of that entry.
//
// Failures of entries within a bundle are logged and retained by those
// entries; they do not fail the bundle.
func (e *Environment) Load(name string, data []byte, kind Kind) error {
	return e.load(name, data, kind, "")
}

func (e *Environment) load(name string, data []byte, kind Kind, parent string) error {
	if i, ok := e.byName[name]; ok {
		return e.cabs[i].err
	}
	digest := blake2b.Sum256(data)
	if i, ok := e.byDigest[digest]; ok {
		e.byName[name] = i
		e.log(slog.LevelDebug, "duplicate content",
			slog.String("name", name),
			slog.String("alias", e.cabs[i].Name),
		)
		return e.cabs[i].err
	}

	c := &CAB{Name: name, Kind: kind, Parent: parent, Data: data, state: Loading}
	i := len(e.cabs)
	e.cabs = append(e.cabs, c)
	e.byName[name] = i
	e.byDigest[digest] = i

	var err error
	switch kind {
	case KindRaw:
	case KindSerialized:
		c.File, err = serialized.Decoder{
			Name:     name,
			Settings: e.settings,
			Cache:    e.cache,
			Host:     e.host,
		}.Decode(data)
	case KindBundle:
		c.Bundle, err = bundle.Parse(data)
	default:
		err = fmt.Errorf("unknown kind %s", kind)
	}
	if err != nil {
		c.File, c.Bundle = nil, nil
		c.state = Failed
		c.err = &LoadError{Name: name, Cause: err}
		return c.err
	}
	c.state = Loaded
	e.log(slog.LevelDebug, "file loaded",
		slog.String("name", name),
		slog.String("kind", kind.String()),
		slog.Int("size", len(data)),
	)

	if c.Bundle != nil {
		for _, entry := range c.Bundle.Entries {
			sub := path.Base(entry.Path)
			err := e.load(sub, entry.Data, entryKind(entry), name)
			attrs := []slog.Attr{
				slog.String("bundle", name),
				slog.String("entry", sub),
				slog.Int64("size", entry.Size),
			}
			if err != nil {
				e.log(slog.LevelWarn, "bundle entry failed", append(attrs, slog.Any("error", err))...)
				continue
			}
			e.log(slog.LevelDebug, "bundle entry ingested", attrs...)
		}
	}
	return nil
}

// entryKind classifies a bundle entry. Resource streams are raw whatever
// their content.
func entryKind(entry bundle.Entry) Kind {
	if isResourceName(entry.Path) {
		return KindRaw
	}
	return Classify(entry.Data)
}

func isResourceName(name string) bool {
	return strings.HasSuffix(name, ".resS") || strings.HasSuffix(name, ".resource")
}

// State returns the state of the entry registered under name, and its
// retained error if it failed. Unregistered names are Unloaded.
func (e *Environment) State(name string) (State, error) {
	i, ok := e.byName[name]
	if !ok {
		return Unloaded, nil
	}
	return e.cabs[i].State()
}

// Names returns every registered name, including aliases, in sorted order.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.byName))
	for name := range e.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CABs returns the entries of the registry in load order.
func (e *Environment) CABs() []*CAB {
	return slices.Clone(e.cabs)
}

// Files returns the serialized files that loaded successfully, in load order.
func (e *Environment) Files() []*serialized.File {
	var files []*serialized.File
	for _, c := range e.cabs {
		if c.File != nil {
			files = append(files, c.File)
		}
	}
	return files
}

// File returns the serialized file registered under name.
func (e *Environment) File(name string) (*serialized.File, bool) {
	i, ok := e.byName[name]
	if !ok || e.cabs[i].File == nil {
		return nil, false
	}
	return e.cabs[i].File, true
}

// Objects iterates over every object of every loaded serialized file.
func (e *Environment) Objects() iter.Seq2[*serialized.File, *serialized.Object] {
	return func(yield func(*serialized.File, *serialized.Object) bool) {
		for _, f := range e.Files() {
			for _, id := range f.ObjectIDs() {
				obj, _ := f.Object(id)
				if !yield(f, obj) {
					return
				}
			}
		}
	}
}
