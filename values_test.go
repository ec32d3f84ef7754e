package unityasset_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/unitytools/unityasset"
)

func TestType_String(t *testing.T) {
	if unityasset.TypeString.String() != "string" {
		t.Error("unexpected result from String")
	}

	if unityasset.Type(0).String() != "Invalid" {
		t.Error("unexpected result from String")
	}
}

func TestTypeFromString(t *testing.T) {
	if unityasset.TypeFromString("string") != unityasset.TypeString {
		t.Error("unexpected result from TypeFromString")
	}

	if unityasset.TypeFromString("UnknownType") != unityasset.TypeInvalid {
		t.Error("unexpected result from TypeFromString")
	}
}

func TestNewValue(t *testing.T) {
	if _, ok := unityasset.NewValue(unityasset.TypeString).(unityasset.ValueString); !ok {
		t.Error("expected ValueString from NewValue")
	}

	if unityasset.NewValue(unityasset.TypeInvalid) != nil {
		t.Error("expected nil value from NewValue")
	}
}

var types = []unityasset.Type{
	unityasset.TypeNull,
	unityasset.TypeBool,
	unityasset.TypeInt,
	unityasset.TypeUint,
	unityasset.TypeFloat,
	unityasset.TypeString,
	unityasset.TypeBytes,
	unityasset.TypeArray,
	unityasset.TypeMap,
}

func TestValueType(t *testing.T) {
	for _, typ := range types {
		v := unityasset.NewValue(typ)
		if v == nil || v.Type() != typ {
			t.Error("unexpected value from NewValue")
		}
	}
}

func TestValueCopy(t *testing.T) {
	for _, typ := range types {
		v := unityasset.NewValue(typ)
		if !reflect.DeepEqual(v, v.Copy()) {
			t.Errorf("copy of value %q is not equal to original", v.Type().String())
		}
	}
}

func TestValueCopyDeep(t *testing.T) {
	orig := unityasset.ValueMap{
		{Name: "m_Name", Value: unityasset.ValueString("a")},
		{Name: "data", Value: unityasset.ValueBytes{1, 2, 3}},
		{Name: "list", Value: unityasset.ValueArray{unityasset.ValueInt(1)}},
	}
	c := orig.Copy().(unityasset.ValueMap)
	c.Get("data").(unityasset.ValueBytes)[0] = 9
	c.Get("list").(unityasset.ValueArray)[0] = unityasset.ValueInt(2)
	c.Set("m_Name", unityasset.ValueString("b"))
	if orig.Get("data").(unityasset.ValueBytes)[0] != 1 {
		t.Error("copy shares byte storage with original")
	}
	if orig.Get("list").(unityasset.ValueArray)[0] != unityasset.ValueInt(1) {
		t.Error("copy shares array storage with original")
	}
	if orig.Get("m_Name") != unityasset.ValueString("a") {
		t.Error("copy shares fields with original")
	}
}

type vtest struct {
	v unityasset.Value
	s string
}

func compareStrings(t *testing.T, vts ...vtest) {
	for _, vt := range vts {
		if vt.v.String() != vt.s {
			t.Errorf("unexpected result from String method of value %q (%q expected, got %q)", vt.v.Type().String(), vt.s, vt.v.String())
		}
	}
}

func TestValueString(t *testing.T) {
	compareStrings(t,
		vtest{unityasset.ValueNull{}, "null"},

		vtest{unityasset.ValueString("test\000string"), "test\000string"},

		vtest{unityasset.ValueBool(true), "true"},
		vtest{unityasset.ValueBool(false), "false"},

		vtest{unityasset.ValueInt(42), "42"},
		vtest{unityasset.ValueInt(-42), "-42"},
		vtest{unityasset.ValueUint(math.MaxUint64), "18446744073709551615"},

		vtest{unityasset.ValueFloat(math.Pi), "3.141592653589793"},
		vtest{unityasset.ValueFloat(float32(1.5)), "1.5"},
		vtest{unityasset.ValueFloat(math.Inf(1)), "+Inf"},
		vtest{unityasset.ValueFloat(math.NaN()), "NaN"},

		vtest{unityasset.ValueBytes{1, 2, 3}, "<3 bytes>"},

		vtest{unityasset.ValueArray{unityasset.ValueInt(1), unityasset.ValueString("x")}, `[1, "x"]`},

		vtest{unityasset.ValueMap{
			{Name: "m_Name", Value: unityasset.ValueString("Cube")},
			{Name: "m_Enabled", Value: unityasset.ValueBool(true)},
		}, `{m_Name: "Cube", m_Enabled: true}`},
	)
}

func TestValueMapOrder(t *testing.T) {
	var m unityasset.ValueMap
	m.Set("z", unityasset.ValueInt(1))
	m.Set("a", unityasset.ValueInt(2))
	m.Set("z", unityasset.ValueInt(3))
	if !reflect.DeepEqual(m.Names(), []string{"z", "a"}) {
		t.Errorf("unexpected field order %v", m.Names())
	}
	if m.Get("z") != unityasset.ValueInt(3) {
		t.Error("unexpected value from Get after Set")
	}
	if m.Get("missing") != nil || m.Has("missing") {
		t.Error("expected missing field to be absent")
	}
}

var sampleValue = unityasset.ValueMap{
	{Name: "m_Name", Value: unityasset.ValueString("Cube")},
	{Name: "m_Enabled", Value: unityasset.ValueBool(true)},
	{Name: "m_Layer", Value: unityasset.ValueInt(-3)},
	{Name: "m_PathID", Value: unityasset.ValueUint(1 << 40)},
	{Name: "m_Scale", Value: unityasset.ValueFloat(0.25)},
	{Name: "m_Script", Value: unityasset.ValueBytes{0, 1, 2}},
	{Name: "m_Empty", Value: unityasset.ValueNull{}},
	{Name: "m_Children", Value: unityasset.ValueArray{
		unityasset.ValueMap{{Name: "b", Value: unityasset.ValueInt(2)}, {Name: "a", Value: unityasset.ValueInt(1)}},
	}},
}

func TestMarshalJSON(t *testing.T) {
	b, err := unityasset.MarshalJSON(sampleValue)
	if err != nil {
		t.Fatal(err)
	}
	const want = `{"m_Name":"Cube","m_Enabled":true,"m_Layer":-3,"m_PathID":1099511627776,"m_Scale":0.25,"m_Script":"AAEC","m_Empty":null,"m_Children":[{"b":2,"a":1}]}`
	if string(b) != want {
		t.Errorf("unexpected JSON\nexpected %s\ngot      %s", want, b)
	}
	if !json.Valid(b) {
		t.Error("output is not valid JSON")
	}

	b, err = unityasset.MarshalJSON(unityasset.ValueFloat(math.Inf(-1)))
	if err != nil || string(b) != `"-Inf"` {
		t.Errorf("unexpected JSON for infinity %s (%v)", b, err)
	}
}

func TestTypedJSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(unityasset.TypedJSON{Value: sampleValue})
	if err != nil {
		t.Fatal(err)
	}
	var out unityasset.TypedJSON
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out.Value, unityasset.Value(sampleValue)) {
		t.Errorf("round trip differs\nexpected %v\ngot      %v", sampleValue, out.Value)
	}

	if err := json.Unmarshal([]byte(`{"root":{"type":"null"}}`), &out); err == nil {
		t.Error("expected error for missing version")
	}
}

func TestMsgpackRoundTrip(t *testing.T) {
	b, err := unityasset.MarshalMsgpack(sampleValue)
	if err != nil {
		t.Fatal(err)
	}
	v, err := unityasset.UnmarshalMsgpack(b)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v, unityasset.Value(sampleValue)) {
		t.Errorf("round trip differs\nexpected %v\ngot      %v", sampleValue, v)
	}
}

func TestParseVersion(t *testing.T) {
	v, err := unityasset.ParseVersion("2019.4.0f1")
	if err != nil {
		t.Fatal(err)
	}
	if want := (unityasset.Version{Major: 2019, Minor: 4, Patch: 0, Type: "f", Build: 1}); v != want {
		t.Errorf("unexpected version %+v", v)
	}
	if v.String() != "2019.4.0f1" {
		t.Errorf("unexpected String %q", v.String())
	}
	if _, err := unityasset.ParseVersion("5.6.7p2-CUSTOM"); err != nil {
		t.Errorf("expected trailing metadata to be ignored: %v", err)
	}
	for _, s := range []string{"", "2019", "x.y.z", "2019.4.0q1"} {
		if _, err := unityasset.ParseVersion(s); err == nil {
			t.Errorf("expected error parsing %q", s)
		}
	}

	older, _ := unityasset.ParseVersion("2018.4.36f1")
	beta, _ := unityasset.ParseVersion("2019.4.0b3")
	if older.Compare(v) != -1 || v.Compare(older) != 1 || v.Compare(v) != 0 {
		t.Error("unexpected ordering across years")
	}
	if beta.Compare(v) != -1 {
		t.Error("expected beta to sort before final")
	}
	if !v.AtLeast(2019, 3) || v.AtLeast(2020, 1) {
		t.Error("unexpected result from AtLeast")
	}
}

func TestClassIDString(t *testing.T) {
	if unityasset.ClassMesh.String() != "Mesh" {
		t.Error("unexpected name for Mesh")
	}
	if unityasset.ClassID(99999).String() != "Class99999" {
		t.Error("unexpected name for unknown class")
	}
	if id, ok := unityasset.ClassIDFromString("AudioClip"); !ok || id != unityasset.ClassAudioClip {
		t.Error("unexpected result from ClassIDFromString")
	}
}

func TestResolveVersion(t *testing.T) {
	var buf bytes.Buffer
	s := unityasset.DefaultSettings()
	s.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	if v, err := s.ResolveVersion("a", "2020.3.1f1"); err != nil || v != "2020.3.1f1" {
		t.Errorf("declared version not used: %q (%v)", v, err)
	}
	if _, err := s.ResolveVersion("a", "0.0.0"); !errors.Is(err, unityasset.ErrNoVersion) {
		t.Errorf("expected ErrNoVersion, got %v", err)
	}

	s.FallbackVersion = "2019.4.0f1"
	for i := 0; i < 2; i++ {
		if v, err := s.ResolveVersion("a", ""); err != nil || v != "2019.4.0f1" {
			t.Errorf("fallback not used: %q (%v)", v, err)
		}
	}
	if n := strings.Count(buf.String(), "level=WARN"); n != 2 {
		t.Errorf("expected a warning on each use, got %d", n)
	}
}

func TestProcessSettings(t *testing.T) {
	defer unityasset.SetSettings(unityasset.CurrentSettings())

	if !unityasset.TypeTreeEnabled() {
		t.Error("expected type trees enabled by default")
	}
	unityasset.SetTypeTreeEnabled(false)
	if unityasset.TypeTreeEnabled() {
		t.Error("expected type trees disabled")
	}
	if err := unityasset.SetFallbackVersion("not a version"); err == nil {
		t.Error("expected invalid fallback to be rejected")
	}
	if err := unityasset.SetFallbackVersion("2019.4.0f1"); err != nil {
		t.Fatal(err)
	}
	if unityasset.FallbackVersion() != "2019.4.0f1" {
		t.Error("unexpected fallback version")
	}
}
