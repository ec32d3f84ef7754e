package env

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"weak"

	"github.com/unitytools/unityasset/errors"
	"github.com/unitytools/unityasset/serialized"
)

// Variants returns the names tried when looking up name, in order: the name
// itself, then companion resource streams of its stem.
func Variants(name string) []string {
	stem := strings.TrimSuffix(name, path.Ext(name))
	return []string{
		name,
		stem + ".resource",
		stem + ".assets.resS",
		stem + ".resS",
	}
}

// GetCAB returns the entry registered under the first variant of name that is
// present.
func (e *Environment) GetCAB(name string) (*CAB, bool) {
	for _, v := range Variants(name) {
		if i, ok := e.byName[v]; ok {
			return e.cabs[i], true
		}
	}
	return nil, false
}

// Resolve looks up name on behalf of from. If the lookup misses, the declared
// dependencies of from, and name itself, are loaded from the environment's
// sources, and the lookup is retried once. A second miss returns a
// *NotFoundError. If the entry found failed to load, its error is returned.
//
// from may be nil, in which case only name is loaded before retrying.
func (e *Environment) Resolve(from *serialized.File, name string) (*CAB, error) {
	if c, ok := e.GetCAB(name); ok {
		return c, c.err
	}
	var names []string
	if from != nil {
		names = from.DependencyNames()
	}
	names = append(names, name)
	warn := e.loadDependencies(from, names)
	if c, ok := e.GetCAB(name); ok {
		return c, c.err
	}
	return nil, &NotFoundError{Name: name, Tried: Variants(name), Cause: warn}
}

// LoadDependencies loads each named file from the environment's sources.
// Names already registered are skipped. Failures do not stop the other
// loads; they are logged and returned together.
func (e *Environment) LoadDependencies(from *serialized.File, names []string) error {
	return e.loadDependencies(from, names)
}

func (e *Environment) loadDependencies(from *serialized.File, names []string) error {
	var errs errors.Errors
	for _, name := range names {
		if err := e.loadDependency(name); err != nil {
			attrs := []slog.Attr{slog.String("name", name), slog.Any("error", err)}
			if from != nil {
				attrs = append(attrs, slog.String("from", from.Name))
			}
			e.log(slog.LevelWarn, "dependency load failed", attrs...)
			errs = errs.Append(err)
		}
	}
	return errs.Return()
}

func (e *Environment) loadDependency(name string) error {
	if _, ok := e.GetCAB(name); ok {
		return nil
	}
	variants := Variants(name)
	for _, v := range variants {
		for _, src := range e.sources {
			data, err := fs.ReadFile(src, v)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
					continue
				}
				return fmt.Errorf("read %s: %w", v, err)
			}
			return e.LoadBytes(v, data)
		}
	}
	return &NotFoundError{Name: name, Tried: variants}
}

// ReadResource returns size bytes at offset of the raw entry registered under
// name, resolved as by Resolve. The result shares memory with the entry.
func (e *Environment) ReadResource(name string, offset, size int64) ([]byte, error) {
	return e.readResource(nil, name, offset, size)
}

func (e *Environment) readResource(from *serialized.File, name string, offset, size int64) ([]byte, error) {
	c, err := e.Resolve(from, name)
	if err != nil {
		return nil, err
	}
	if c.Kind != KindRaw {
		return nil, fmt.Errorf("%s is %s: %w", c.Name, c.Kind, ErrNotRaw)
	}
	n := int64(len(c.Data))
	if offset < 0 || size < 0 || offset > n || size > n-offset {
		avail := n - offset
		if offset < 0 || avail < 0 {
			avail = 0
		}
		return nil, &RangeError{Name: c.Name, Offset: offset, Requested: size, Available: avail}
	}
	return c.Data[offset : offset+size : offset+size], nil
}

// handle is the view of an environment held by its files.
type handle struct {
	env weak.Pointer[Environment]
}

func (h *handle) get() (*Environment, error) {
	e := h.env.Value()
	if e == nil {
		return nil, ErrReleased
	}
	return e, nil
}

func (h *handle) LoadDependencies(from *serialized.File, names []string) error {
	e, err := h.get()
	if err != nil {
		return err
	}
	return e.LoadDependencies(from, names)
}

func (h *handle) File(from *serialized.File, name string) (*serialized.File, error) {
	e, err := h.get()
	if err != nil {
		return nil, err
	}
	c, err := e.Resolve(from, name)
	if err != nil {
		return nil, err
	}
	if c.File == nil {
		return nil, fmt.Errorf("%s is %s: %w", c.Name, c.Kind, ErrNotSerialized)
	}
	return c.File, nil
}

func (h *handle) ReadResource(from *serialized.File, name string, offset, size int64) ([]byte, error) {
	e, err := h.get()
	if err != nil {
		return nil, err
	}
	return e.readResource(from, name, offset, size)
}
