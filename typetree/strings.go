package typetree

// commonStrings is the engine's shared string table. A node string offset
// with the high bit set indexes into the table formed by joining these with
// NUL terminators.
var commonStrings = []string{
	"AABB", "AnimationClip", "AnimationCurve", "AnimationState", "Array",
	"Base", "BitField", "bitset", "bool", "char", "ColorRGBA", "Component",
	"data", "deque", "double", "dynamic_array", "FastPropertyName", "first",
	"float", "Font", "GameObject", "Generic Mono", "GradientNEW", "GUID",
	"GUIStyle", "int", "list", "long long", "map", "Matrix4x4f", "MdFour",
	"MonoBehaviour", "MonoScript", "m_ByteSize", "m_Curve",
	"m_EditorClassIdentifier", "m_EditorHideFlags", "m_Enabled",
	"m_ExtensionPtr", "m_GameObject", "m_Index", "m_IsArray", "m_IsStatic",
	"m_MetaFlag", "m_Name", "m_ObjectHideFlags", "m_PrefabInternal",
	"m_PrefabParentObject", "m_Script", "m_StaticEditorFlags", "m_Type",
	"m_Version", "Object", "pair", "PPtr<Component>", "PPtr<GameObject>",
	"PPtr<Material>", "PPtr<MonoBehaviour>", "PPtr<MonoScript>",
	"PPtr<Object>", "PPtr<Prefab>", "PPtr<Sprite>", "PPtr<TextAsset>",
	"PPtr<Texture>", "PPtr<Texture2D>", "PPtr<Transform>", "Prefab",
	"Quaternionf", "Rectf", "RectInt", "RectOffset", "second", "set", "short",
	"size", "SInt16", "SInt32", "SInt64", "SInt8", "staticvector", "string",
	"TextAsset", "TextMesh", "Texture", "Texture2D", "Transform",
	"TypelessData", "UInt16", "UInt32", "UInt64", "UInt8", "unsigned int",
	"unsigned long long", "unsigned short", "vector", "Vector2f", "Vector3f",
	"Vector4f", "m_ScriptingClassIdentifier", "Gradient", "Type*",
	"int2_storage", "int3_storage", "BoundsInt", "m_CorrespondingSourceObject",
	"m_PrefabInstance", "m_PrefabAsset", "FileSize", "Hash128",
}

const commonFlag = 0x80000000

var (
	commonByOffset = map[uint32]string{}
	commonByString = map[string]uint32{}
)

func init() {
	var off uint32
	for _, s := range commonStrings {
		commonByOffset[off] = s
		commonByString[s] = off
		off += uint32(len(s)) + 1
	}
}

// CommonString returns the shared string at the given offset into the common
// table. The offset must not include the high bit.
func CommonString(offset uint32) (string, bool) {
	s, ok := commonByOffset[offset]
	return s, ok
}

// CommonOffset returns the offset of s in the common table.
func CommonOffset(s string) (uint32, bool) {
	off, ok := commonByString[s]
	return off, ok
}
