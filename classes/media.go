package classes

import (
	"fmt"
	"math"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/serialized"
)

// TextAsset holds text or binary data stored as an asset.
type TextAsset struct {
	Name   string
	Script []byte
}

// TextAssetFrom reads a TextAsset from a decoded value.
func TextAssetFrom(v unityasset.Value) (*TextAsset, error) {
	f := newFields("TextAsset", v)
	t := &TextAsset{
		Name:   f.str("m_Name"),
		Script: f.bytes("m_Script"),
	}
	if f.err != nil {
		return nil, f.err
	}
	return t, nil
}

// ReadTextAsset decodes the TextAsset object at pathID.
func ReadTextAsset(file *serialized.File, pathID int64) (*TextAsset, error) {
	v, err := decode(file, pathID, unityasset.ClassTextAsset)
	if err != nil {
		return nil, err
	}
	return TextAssetFrom(v)
}

// StreamingInfo locates data stored in a resource stream.
type StreamingInfo struct {
	Offset uint64
	Size   uint64
	Path   string
}

// Empty returns whether no data is stored externally.
func (s StreamingInfo) Empty() bool {
	return s.Path == "" || s.Size == 0
}

// Read returns the referenced bytes through the environment of from.
func (s StreamingInfo) Read(from *serialized.File) ([]byte, error) {
	if s.Offset > math.MaxInt64 {
		return nil, &FieldError{Class: "StreamingInfo", Field: "offset", Cause: fmt.Errorf("%w: %d", ErrFieldRange, s.Offset)}
	}
	if s.Size > math.MaxInt64 {
		return nil, &FieldError{Class: "StreamingInfo", Field: "size", Cause: fmt.Errorf("%w: %d", ErrFieldRange, s.Size)}
	}
	return from.ReadResource(s.Path, int64(s.Offset), int64(s.Size))
}

func streamingInfoFrom(f *fields) StreamingInfo {
	return StreamingInfo{
		Offset: f.uint("offset"),
		Size:   f.uint("size"),
		Path:   f.str("path"),
	}
}

// AudioClip is a sound asset. Its samples are stored in a resource stream for
// engine versions 5 and later, and inline before that.
type AudioClip struct {
	Name              string
	Channels          int32
	Frequency         int32
	BitsPerSample     int32
	Length            float32
	LoadType          int32
	CompressionFormat int32
	Resource          StreamingInfo

	// AudioData is set for versions that store samples inline.
	AudioData []byte
}

// AudioClipFrom reads an AudioClip from a decoded value.
func AudioClipFrom(v unityasset.Value) (*AudioClip, error) {
	f := newFields("AudioClip", v)
	a := &AudioClip{Name: f.str("m_Name")}
	if f.has("m_Resource") {
		a.Channels = int32(f.int("m_Channels"))
		a.Frequency = int32(f.int("m_Frequency"))
		a.BitsPerSample = int32(f.int("m_BitsPerSample"))
		a.Length = float32(f.float("m_Length"))
		a.LoadType = int32(f.int("m_LoadType"))
		a.CompressionFormat = int32(f.int("m_CompressionFormat"))
		res := f.sub("m_Resource")
		a.Resource = StreamingInfo{
			Offset: res.uint("m_Offset"),
			Size:   res.uint("m_Size"),
			Path:   res.str("m_Source"),
		}
		f.join(res)
	} else if f.has("m_AudioData") {
		a.AudioData = f.bytes("m_AudioData")
	}
	if f.err != nil {
		return nil, f.err
	}
	return a, nil
}

// Data returns the encoded samples of the clip.
func (a *AudioClip) Data(from *serialized.File) ([]byte, error) {
	switch {
	case a.AudioData != nil:
		return a.AudioData, nil
	case !a.Resource.Empty():
		return a.Resource.Read(from)
	}
	return nil, &FieldError{Class: "AudioClip", Field: "m_Resource", Cause: ErrUnsupported}
}

// ReadAudioClip decodes the AudioClip object at pathID.
func ReadAudioClip(file *serialized.File, pathID int64) (*AudioClip, error) {
	v, err := decode(file, pathID, unityasset.ClassAudioClip)
	if err != nil {
		return nil, err
	}
	return AudioClipFrom(v)
}

// Texture2D is an image asset. Pixel data is inline in ImageData, or in a
// resource stream described by StreamData.
type Texture2D struct {
	Name          string
	Width         int32
	Height        int32
	TextureFormat int32
	MipCount      int32
	ImageData     []byte
	StreamData    StreamingInfo
}

// Texture2DFrom reads a Texture2D from a decoded value.
func Texture2DFrom(v unityasset.Value) (*Texture2D, error) {
	f := newFields("Texture2D", v)
	t := &Texture2D{
		Name:          f.str("m_Name"),
		Width:         int32(f.int("m_Width")),
		Height:        int32(f.int("m_Height")),
		TextureFormat: int32(f.int("m_TextureFormat")),
		MipCount:      1,
	}
	if f.has("m_MipCount") {
		t.MipCount = int32(f.int("m_MipCount"))
	}
	t.ImageData = f.bytes("image data")
	if f.has("m_StreamData") {
		s := f.sub("m_StreamData")
		t.StreamData = streamingInfoFrom(s)
		f.join(s)
	}
	if f.err != nil {
		return nil, f.err
	}
	return t, nil
}

// Data returns the encoded pixel data of the texture.
func (t *Texture2D) Data(from *serialized.File) ([]byte, error) {
	if len(t.ImageData) > 0 {
		return t.ImageData, nil
	}
	if t.StreamData.Empty() {
		return nil, fmt.Errorf("texture %q has no image data", t.Name)
	}
	return t.StreamData.Read(from)
}

// ReadTexture2D decodes the Texture2D object at pathID.
func ReadTexture2D(file *serialized.File, pathID int64) (*Texture2D, error) {
	v, err := decode(file, pathID, unityasset.ClassTexture2D)
	if err != nil {
		return nil, err
	}
	return Texture2DFrom(v)
}
