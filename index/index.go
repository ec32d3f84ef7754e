// Package index exports the contents of an environment to a bolt database.
//
// The database has three top-level buckets:
//
//	container  asset path -> object reference
//	files      file name  -> file summary
//	objects    one nested bucket per file; big-endian path id -> object value
//
// References and summaries are MessagePack-encoded structs. Object values
// use the ordered MessagePack encoding of unityasset.Value.
package index

import (
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/env"
	"github.com/unitytools/unityasset/errors"
	"github.com/unitytools/unityasset/serialized"
)

var (
	bucketContainer = []byte("container")
	bucketFiles     = []byte("files")
	bucketObjects   = []byte("objects")
)

// ErrNotIndexed indicates a lookup of something absent from the database.
var ErrNotIndexed = errors.New("not indexed")

// FileSummary describes an exported file.
type FileSummary struct {
	Format        uint32   `msgpack:"format"`
	EngineVersion string   `msgpack:"engineVersion"`
	Objects       int      `msgpack:"objects"`
	Dependencies  []string `msgpack:"dependencies,omitempty"`
}

type objectRef struct {
	File   string `msgpack:"file"`
	PathID int64  `msgpack:"pathID"`
}

// Options controls what Write exports.
type Options struct {
	// SkipObjects omits decoded objects; only the container and file
	// summaries are written.
	SkipObjects bool
}

func pathKey(pathID int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(pathID))
	return b[:]
}

// Write stores the container index, file summaries and decoded objects of e
// in db, in one transaction. Objects that fail to decode and container
// entries that cannot be resolved are skipped and returned as warn.
func Write(db *bbolt.DB, e *env.Environment, opt Options) (warn, err error) {
	var errs errors.Errors
	container, cerr := e.Container()
	errs = errs.Append(cerr)

	err = db.Update(func(tx *bbolt.Tx) error {
		cb, err := tx.CreateBucketIfNotExists(bucketContainer)
		if err != nil {
			return err
		}
		for asset, ref := range container {
			b, err := msgpack.Marshal(objectRef{File: ref.File, PathID: ref.PathID})
			if err != nil {
				return err
			}
			if err := cb.Put([]byte(asset), b); err != nil {
				return err
			}
		}

		fb, err := tx.CreateBucketIfNotExists(bucketFiles)
		if err != nil {
			return err
		}
		ob, err := tx.CreateBucketIfNotExists(bucketObjects)
		if err != nil {
			return err
		}
		for _, f := range e.Files() {
			b, err := msgpack.Marshal(FileSummary{
				Format:        f.Header.Version,
				EngineVersion: f.Version,
				Objects:       len(f.Objects),
				Dependencies:  f.DependencyNames(),
			})
			if err != nil {
				return err
			}
			if err := fb.Put([]byte(f.Name), b); err != nil {
				return err
			}
			if opt.SkipObjects {
				continue
			}
			werr, err := writeObjects(ob, f)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			errs = errs.Append(werr)
		}
		return nil
	})
	return errs.Return(), err
}

func writeObjects(parent *bbolt.Bucket, f *serialized.File) (warn, err error) {
	var errs errors.Errors
	b, err := parent.CreateBucketIfNotExists([]byte(f.Name))
	if err != nil {
		return nil, err
	}
	for _, id := range f.ObjectIDs() {
		v, derr := f.Decode(id)
		if derr != nil {
			errs = errs.Append(derr)
			continue
		}
		data, err := unityasset.MarshalMsgpack(v)
		if err != nil {
			errs = errs.Append(fmt.Errorf("object %d: %w", id, err))
			continue
		}
		if err := b.Put(pathKey(id), data); err != nil {
			return nil, err
		}
	}
	return errs.Return(), nil
}

// Lookup returns the reference stored for an asset path.
func Lookup(db *bbolt.DB, asset string) (ref env.ObjectRef, err error) {
	err = db.View(func(tx *bbolt.Tx) error {
		cb := tx.Bucket(bucketContainer)
		if cb == nil {
			return ErrNotIndexed
		}
		b := cb.Get([]byte(asset))
		if b == nil {
			return fmt.Errorf("asset %q: %w", asset, ErrNotIndexed)
		}
		var r objectRef
		if err := msgpack.Unmarshal(b, &r); err != nil {
			return err
		}
		ref = env.ObjectRef{File: r.File, PathID: r.PathID}
		return nil
	})
	return ref, err
}

// Summary returns the summary stored for a file.
func Summary(db *bbolt.DB, file string) (s FileSummary, err error) {
	err = db.View(func(tx *bbolt.Tx) error {
		fb := tx.Bucket(bucketFiles)
		if fb == nil {
			return ErrNotIndexed
		}
		b := fb.Get([]byte(file))
		if b == nil {
			return fmt.Errorf("file %q: %w", file, ErrNotIndexed)
		}
		return msgpack.Unmarshal(b, &s)
	})
	return s, err
}

// Object returns the decoded value stored for an object.
func Object(db *bbolt.DB, ref env.ObjectRef) (v unityasset.Value, err error) {
	err = db.View(func(tx *bbolt.Tx) error {
		ob := tx.Bucket(bucketObjects)
		if ob == nil {
			return ErrNotIndexed
		}
		fb := ob.Bucket([]byte(ref.File))
		if fb == nil {
			return fmt.Errorf("file %q: %w", ref.File, ErrNotIndexed)
		}
		b := fb.Get(pathKey(ref.PathID))
		if b == nil {
			return fmt.Errorf("object %s: %w", ref, ErrNotIndexed)
		}
		v, err = unityasset.UnmarshalMsgpack(b)
		return err
	})
	return v, err
}
