package classes

import (
	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/serialized"
)

// AssetInfo locates an asset within the preload table of a bundle.
type AssetInfo struct {
	PreloadIndex int32
	PreloadSize  int32
	Asset        PPtr
}

func assetInfoFrom(f *fields) AssetInfo {
	return AssetInfo{
		PreloadIndex: int32(f.int("preloadIndex")),
		PreloadSize:  int32(f.int("preloadSize")),
		Asset:        f.pptr("asset"),
	}
}

// ContainerEntry maps an asset path to an object.
type ContainerEntry struct {
	Path string
	AssetInfo
}

// AssetBundle is the manifest object of a bundle.
type AssetBundle struct {
	Name         string
	BundleName   string
	PreloadTable []PPtr
	Container    []ContainerEntry
	MainAsset    AssetInfo
	Dependencies []string
}

// AssetBundleFrom reads an AssetBundle from a decoded value.
func AssetBundleFrom(v unityasset.Value) (*AssetBundle, error) {
	f := newFields("AssetBundle", v)
	a := &AssetBundle{Name: f.str("m_Name")}
	for _, p := range f.array("m_PreloadTable") {
		ptr, err := PPtrFrom(p)
		if err != nil {
			f.fail("m_PreloadTable", err)
			break
		}
		a.PreloadTable = append(a.PreloadTable, ptr)
	}
	for _, pair := range f.array("m_Container") {
		pf := newFields("AssetBundle.m_Container", pair)
		path := pf.str("first")
		info := pf.sub("second")
		e := ContainerEntry{Path: path, AssetInfo: assetInfoFrom(info)}
		pf.join(info)
		if pf.err != nil {
			f.fail("m_Container", pf.err)
			break
		}
		a.Container = append(a.Container, e)
	}
	if f.has("m_MainAsset") {
		main := f.sub("m_MainAsset")
		a.MainAsset = assetInfoFrom(main)
		f.join(main)
	}
	if f.has("m_AssetBundleName") {
		a.BundleName = f.str("m_AssetBundleName")
	}
	if f.has("m_Dependencies") {
		for _, d := range f.array("m_Dependencies") {
			s, ok := d.(unityasset.ValueString)
			if !ok {
				f.fail("m_Dependencies", ErrFieldType)
				break
			}
			a.Dependencies = append(a.Dependencies, string(s))
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return a, nil
}

// ReadAssetBundle decodes the AssetBundle object at pathID.
func ReadAssetBundle(file *serialized.File, pathID int64) (*AssetBundle, error) {
	v, err := decode(file, pathID, unityasset.ClassAssetBundle)
	if err != nil {
		return nil, err
	}
	return AssetBundleFrom(v)
}

// ResourceEntry maps a resource path to an object.
type ResourceEntry struct {
	Path  string
	Asset PPtr
}

// ResourceManager is the index of the resources folder of a build.
type ResourceManager struct {
	Container []ResourceEntry
}

// ResourceManagerFrom reads a ResourceManager from a decoded value.
func ResourceManagerFrom(v unityasset.Value) (*ResourceManager, error) {
	f := newFields("ResourceManager", v)
	r := &ResourceManager{}
	for _, pair := range f.array("m_Container") {
		pf := newFields("ResourceManager.m_Container", pair)
		e := ResourceEntry{Path: pf.str("first"), Asset: pf.pptr("second")}
		if pf.err != nil {
			f.fail("m_Container", pf.err)
			break
		}
		r.Container = append(r.Container, e)
	}
	if f.err != nil {
		return nil, f.err
	}
	return r, nil
}

// ReadResourceManager decodes the ResourceManager object at pathID.
func ReadResourceManager(file *serialized.File, pathID int64) (*ResourceManager, error) {
	v, err := decode(file, pathID, unityasset.ClassResourceManager)
	if err != nil {
		return nil, err
	}
	return ResourceManagerFrom(v)
}
