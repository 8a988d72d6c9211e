package rt

import (
	"errors"
	"testing"

	"github.com/chazu/javelin/bytecode"
	"github.com/chazu/javelin/classfile"
)

func TestLoadKnownClasses(t *testing.T) {
	for _, name := range []string{
		"java/lang/Object",
		"java/lang/String",
		"java/lang/Class",
		"java/lang/Throwable",
		"java/lang/StackOverflowError",
		"java/lang/StackTraceElement",
		"java/lang/System",
		"java/io/PrintStream",
	} {
		c, err := Load(name)
		if err != nil {
			t.Errorf("Load(%q) error: %v", name, err)
			continue
		}
		if c.Name != name {
			t.Errorf("Load(%q).Name = %q", name, c.Name)
		}
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("com/example/Missing")
	if !errors.Is(err, classfile.ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	if len(names) < 20 {
		t.Fatalf("Names() returned %d classes", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("Names not sorted at %d: %q >= %q", i, names[i-1], names[i])
		}
	}
}

func TestSuperclassesPresent(t *testing.T) {
	for _, name := range Names() {
		c, _ := Load(name)
		if c.SuperName == "" {
			if name != "java/lang/Object" {
				t.Errorf("%s has no superclass", name)
			}
			continue
		}
		if _, err := Load(c.SuperName); err != nil {
			t.Errorf("%s: superclass %s not in library", name, c.SuperName)
		}
		for _, iface := range c.Interfaces {
			if _, err := Load(iface); err != nil {
				t.Errorf("%s: interface %s not in library", name, iface)
			}
		}
	}
}

// Every method body must decode instruction by instruction to its end and
// every native or abstract method must be bodiless.
func TestMethodBodiesWellFormed(t *testing.T) {
	for _, name := range Names() {
		c, _ := Load(name)
		for _, m := range c.Methods {
			bodiless := m.AccessFlags.IsNative() || m.AccessFlags.IsAbstract()
			if bodiless != (m.Code == nil) {
				t.Errorf("%s.%s%s: native/abstract = %v but has code = %v", name, m.Name, m.Descriptor, bodiless, m.Code != nil)
				continue
			}
			if m.Code == nil {
				continue
			}
			code := m.Code.Bytecode
			pc := 0
			for pc < len(code) {
				n, err := bytecode.Length(code, pc)
				if err != nil {
					t.Errorf("%s.%s%s: %v", name, m.Name, m.Descriptor, err)
					break
				}
				pc += n
			}
			last := bytecode.Opcode(code[len(code)-1])
			if !last.IsReturn() && last != bytecode.OpAthrow {
				t.Errorf("%s.%s%s ends with %s", name, m.Name, m.Descriptor, last)
			}
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, name := range Names() {
		c, _ := Load(name)
		data, err := classfile.Encode(c)
		if err != nil {
			t.Errorf("Encode(%s) error: %v", name, err)
			continue
		}
		back, err := classfile.ParseBytes(data)
		if err != nil {
			t.Errorf("ParseBytes(%s) error: %v", name, err)
			continue
		}
		if back.Name != c.Name || len(back.Methods) != len(c.Methods) || len(back.Fields) != len(c.Fields) {
			t.Errorf("%s: round trip changed shape: %d/%d methods, %d/%d fields",
				name, len(back.Methods), len(c.Methods), len(back.Fields), len(c.Fields))
		}
	}
}

func TestThrowableConstructorsRecordTrace(t *testing.T) {
	c, _ := Load("java/lang/Throwable")
	for _, desc := range []string{"()V", "(Ljava/lang/String;)V"} {
		m := c.Method("<init>", desc)
		if m == nil {
			t.Fatalf("Throwable.<init>%s missing", desc)
		}
		if !containsInvoke(c, m.Code.Bytecode, "fillInStackTrace") {
			t.Errorf("Throwable.<init>%s does not call fillInStackTrace", desc)
		}
	}
}

func containsInvoke(c *classfile.Class, code []byte, name string) bool {
	for pc := 0; pc < len(code); {
		op := bytecode.Opcode(code[pc])
		if op == bytecode.OpInvokevirtual {
			index := uint16(code[pc+1])<<8 | uint16(code[pc+2])
			if _, n, _, err := c.MemberRef(index); err == nil && n == name {
				return true
			}
		}
		n, err := bytecode.Length(code, pc)
		if err != nil {
			return false
		}
		pc += n
	}
	return false
}
