package vm

import "testing"

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		prim    bool
		wide    bool
		array   bool
		dims    int
		element TypeDescriptor
		class   string
	}{
		{"I", true, false, false, 0, "I", "I"},
		{"J", true, true, false, 0, "J", "J"},
		{"D", true, true, false, 0, "D", "D"},
		{"Ljava/lang/String;", false, false, false, 0, "Ljava/lang/String;", "java/lang/String"},
		{"[I", false, false, true, 1, "I", "[I"},
		{"[[Ljava/lang/Object;", false, false, true, 2, "Ljava/lang/Object;", "[[Ljava/lang/Object;"},
	}
	for _, tt := range tests {
		td, err := ParseType(tt.in)
		if err != nil {
			t.Errorf("ParseType(%q) error: %v", tt.in, err)
			continue
		}
		if td.IsPrimitive() != tt.prim {
			t.Errorf("%q.IsPrimitive() = %v, want %v", tt.in, td.IsPrimitive(), tt.prim)
		}
		if td.IsWide() != tt.wide {
			t.Errorf("%q.IsWide() = %v, want %v", tt.in, td.IsWide(), tt.wide)
		}
		if td.IsArray() != tt.array {
			t.Errorf("%q.IsArray() = %v, want %v", tt.in, td.IsArray(), tt.array)
		}
		if td.Dimensions() != tt.dims {
			t.Errorf("%q.Dimensions() = %d, want %d", tt.in, td.Dimensions(), tt.dims)
		}
		if td.ElementType() != tt.element {
			t.Errorf("%q.ElementType() = %q, want %q", tt.in, td.ElementType(), tt.element)
		}
		if td.ClassName() != tt.class {
			t.Errorf("%q.ClassName() = %q, want %q", tt.in, td.ClassName(), tt.class)
		}
	}
}

func TestParseTypeErrors(t *testing.T) {
	for _, in := range []string{"", "Q", "Ljava/lang/String", "[", "II", "L;"} {
		if _, err := ParseType(in); err == nil {
			t.Errorf("ParseType(%q) succeeded, want error", in)
		}
	}
}

func TestDescriptorEquality(t *testing.T) {
	a, _ := ParseType("[Ljava/lang/String;")
	b := FromInternal("java/lang/String").ArrayOf()
	if a != b {
		t.Errorf("structural equality failed: %q != %q", a, b)
	}
	if FromInternal("[I") != TypeDescriptor("[I") {
		t.Errorf("FromInternal should pass array descriptors through")
	}
}

func TestJavaName(t *testing.T) {
	tests := map[TypeDescriptor]string{
		"I":                    "int",
		"Ljava/lang/String;":   "java.lang.String",
		"[[D":                  "double[][]",
		"[Ljava/lang/Object;":  "java.lang.Object[]",
		"Ljava/lang/System$1;": "java.lang.System$1",
	}
	for td, want := range tests {
		if got := td.JavaName(); got != want {
			t.Errorf("%q.JavaName() = %q, want %q", td, got, want)
		}
	}
}

func TestDefaultValues(t *testing.T) {
	tests := []struct {
		td   TypeDescriptor
		want Value
	}{
		{TypeInt, int32(0)},
		{TypeBoolean, int32(0)},
		{TypeLong, int64(0)},
		{TypeFloat, float32(0)},
		{TypeDouble, float64(0)},
		{TypeString, nil},
		{"[I", nil},
	}
	for _, tt := range tests {
		if got := tt.td.DefaultValue(); got != tt.want {
			t.Errorf("%q.DefaultValue() = %#v, want %#v", tt.td, got, tt.want)
		}
	}
}

func TestParseMethod(t *testing.T) {
	md, err := ParseMethod("(IJ[Ljava/lang/String;D)V")
	if err != nil {
		t.Fatalf("ParseMethod error: %v", err)
	}
	if len(md.Args) != 4 {
		t.Fatalf("len(Args) = %d, want 4", len(md.Args))
	}
	if md.ArgSlots() != 6 {
		t.Errorf("ArgSlots() = %d, want 6", md.ArgSlots())
	}
	if md.ReturnsValue() {
		t.Errorf("ReturnsValue() = true for void method")
	}
	if md.String() != "(IJ[Ljava/lang/String;D)V" {
		t.Errorf("String() = %q", md.String())
	}

	for _, bad := range []string{"", "V", "(V)V", "(I", "(I)", "(I)VV"} {
		if _, err := ParseMethod(bad); err == nil {
			t.Errorf("ParseMethod(%q) succeeded, want error", bad)
		}
	}
}

func TestMangleNativeName(t *testing.T) {
	tests := []struct {
		class, method, want string
	}{
		{"java/lang/System", "arraycopy", "Java_lang_jni_System_arraycopy"},
		{"java/lang/System$1", "write", "Java_lang_jni_System_1_write"},
		{"Main", "hello", "Jni_Main_hello"},
		{"com/example/app/Util", "run", "Com_example_app_jni_Util_run"},
	}
	for _, tt := range tests {
		if got := MangleNativeName(tt.class, tt.method); got != tt.want {
			t.Errorf("MangleNativeName(%q, %q) = %q, want %q", tt.class, tt.method, got, tt.want)
		}
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		td   TypeDescriptor
		in   int32
		want int32
	}{
		{TypeByte, 200, -56},
		{TypeChar, -1, 0xffff},
		{TypeShort, 70000, 4464},
		{TypeBoolean, 3, 1},
		{TypeInt, 70000, 70000},
	}
	for _, tt := range tests {
		if got := coerce(tt.td, tt.in); got != Value(tt.want) {
			t.Errorf("coerce(%q, %d) = %v, want %d", tt.td, tt.in, got, tt.want)
		}
	}
}
