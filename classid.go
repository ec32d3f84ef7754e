package unityasset

import "strconv"

// ClassID identifies the semantic type of a stored object.
type ClassID int32

const (
	ClassObject             ClassID = 0
	ClassGameObject         ClassID = 1
	ClassComponent          ClassID = 2
	ClassTransform          ClassID = 4
	ClassCamera             ClassID = 20
	ClassMaterial           ClassID = 21
	ClassMeshRenderer       ClassID = 23
	ClassTexture2D          ClassID = 28
	ClassMeshFilter         ClassID = 33
	ClassMesh               ClassID = 43
	ClassShader             ClassID = 48
	ClassTextAsset          ClassID = 49
	ClassRigidbody2D        ClassID = 50
	ClassRigidbody          ClassID = 54
	ClassMeshCollider       ClassID = 64
	ClassBoxCollider        ClassID = 65
	ClassAnimationClip      ClassID = 74
	ClassAudioSource        ClassID = 82
	ClassAudioClip          ClassID = 83
	ClassRenderTexture      ClassID = 84
	ClassCubemap            ClassID = 89
	ClassAvatar             ClassID = 90
	ClassAnimatorController ClassID = 91
	ClassAnimator           ClassID = 95
	ClassRenderSettings     ClassID = 104
	ClassLight              ClassID = 108
	ClassAnimation          ClassID = 111
	ClassMonoBehaviour      ClassID = 114
	ClassMonoScript         ClassID = 115
	ClassTexture3D          ClassID = 117
	ClassFont               ClassID = 128
	ClassPlayerSettings     ClassID = 129
	ClassPhysicMaterial     ClassID = 134
	ClassSphereCollider     ClassID = 135
	ClassSkinnedMeshRender  ClassID = 137
	ClassAssetBundle        ClassID = 142
	ClassPreloadData        ClassID = 150
	ClassResourceManager    ClassID = 147
	ClassMovieTexture       ClassID = 152
	ClassTerrainData        ClassID = 156
	ClassAudioMixer         ClassID = 240
	ClassSprite             ClassID = 213
	ClassCanvasRenderer     ClassID = 222
	ClassCanvas             ClassID = 223
	ClassRectTransform      ClassID = 224
	ClassVideoClip          ClassID = 329
	ClassSpriteAtlas        ClassID = 687078895
)

var classNames = map[ClassID]string{
	ClassObject:             "Object",
	ClassGameObject:         "GameObject",
	ClassComponent:          "Component",
	ClassTransform:          "Transform",
	ClassCamera:             "Camera",
	ClassMaterial:           "Material",
	ClassMeshRenderer:       "MeshRenderer",
	ClassTexture2D:          "Texture2D",
	ClassMeshFilter:         "MeshFilter",
	ClassMesh:               "Mesh",
	ClassShader:             "Shader",
	ClassTextAsset:          "TextAsset",
	ClassRigidbody2D:        "Rigidbody2D",
	ClassRigidbody:          "Rigidbody",
	ClassMeshCollider:       "MeshCollider",
	ClassBoxCollider:        "BoxCollider",
	ClassAnimationClip:      "AnimationClip",
	ClassAudioSource:        "AudioSource",
	ClassAudioClip:          "AudioClip",
	ClassRenderTexture:      "RenderTexture",
	ClassCubemap:            "Cubemap",
	ClassAvatar:             "Avatar",
	ClassAnimatorController: "AnimatorController",
	ClassAnimator:           "Animator",
	ClassRenderSettings:     "RenderSettings",
	ClassLight:              "Light",
	ClassAnimation:          "Animation",
	ClassMonoBehaviour:      "MonoBehaviour",
	ClassMonoScript:         "MonoScript",
	ClassTexture3D:          "Texture3D",
	ClassFont:               "Font",
	ClassPlayerSettings:     "PlayerSettings",
	ClassPhysicMaterial:     "PhysicMaterial",
	ClassSphereCollider:     "SphereCollider",
	ClassSkinnedMeshRender:  "SkinnedMeshRenderer",
	ClassAssetBundle:        "AssetBundle",
	ClassResourceManager:    "ResourceManager",
	ClassPreloadData:        "PreloadData",
	ClassMovieTexture:       "MovieTexture",
	ClassTerrainData:        "TerrainData",
	ClassSprite:             "Sprite",
	ClassCanvasRenderer:     "CanvasRenderer",
	ClassCanvas:             "Canvas",
	ClassRectTransform:      "RectTransform",
	ClassAudioMixer:         "AudioMixerController",
	ClassVideoClip:          "VideoClip",
	ClassSpriteAtlas:        "SpriteAtlas",
}

// String returns the name of the class, or "Class<n>" for ids without a
// known name.
func (c ClassID) String() string {
	if s, ok := classNames[c]; ok {
		return s
	}
	return "Class" + strconv.Itoa(int(c))
}

// ClassIDFromString returns the id of a named class.
func ClassIDFromString(s string) (ClassID, bool) {
	for id, name := range classNames {
		if name == s {
			return id, true
		}
	}
	return 0, false
}

// IsScript returns whether objects of the class carry a script-defined
// layout that varies per script rather than per engine version.
func (c ClassID) IsScript() bool {
	return c == ClassMonoBehaviour
}
