package env

import (
	"fmt"
	"log/slog"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/classes"
	"github.com/unitytools/unityasset/errors"
	"github.com/unitytools/unityasset/serialized"
)

// ObjectRef locates an object within the environment.
type ObjectRef struct {
	File   string
	PathID int64
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("%s:%d", r.File, r.PathID)
}

// Object returns the file and object r refers to.
func (e *Environment) Object(r ObjectRef) (*serialized.File, *serialized.Object, error) {
	f, ok := e.File(r.File)
	if !ok {
		return nil, nil, &NotFoundError{Name: r.File, Tried: []string{r.File}}
	}
	obj, ok := f.Object(r.PathID)
	if !ok {
		return nil, nil, serialized.ObjectError{File: f.Name, PathID: r.PathID, Cause: serialized.ErrObjectNotFound}
	}
	return f, obj, nil
}

// Container returns the index of asset paths to objects, gathered from the
// AssetBundle and ResourceManager objects of every loaded file. Objects that
// cannot be read are skipped; their errors are returned together with the
// index.
func (e *Environment) Container() (map[string]ObjectRef, error) {
	index := map[string]ObjectRef{}
	var errs errors.Errors
	add := func(from *serialized.File, asset string, p classes.PPtr) {
		file, err := p.FileName(from)
		if err != nil {
			errs = errs.Append(fmt.Errorf("%s: container %q: %w", from.Name, asset, err))
			return
		}
		index[asset] = ObjectRef{File: file, PathID: p.PathID}
	}
	for f, obj := range e.Objects() {
		switch obj.ClassID {
		case unityasset.ClassAssetBundle:
			ab, err := classes.ReadAssetBundle(f, obj.PathID)
			if err != nil {
				errs = errs.Append(err)
				continue
			}
			for _, c := range ab.Container {
				add(f, c.Path, c.Asset)
			}
		case unityasset.ClassResourceManager:
			rm, err := classes.ReadResourceManager(f, obj.PathID)
			if err != nil {
				errs = errs.Append(err)
				continue
			}
			for _, c := range rm.Container {
				add(f, c.Path, c.Asset)
			}
		}
	}
	if len(errs) > 0 {
		e.log(slog.LevelWarn, "container index incomplete", slog.Int("errors", len(errs)))
	}
	return index, errs.Return()
}
