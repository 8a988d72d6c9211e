package vm

import (
	"github.com/chazu/javelin/classfile"
)

// MemberRef is a symbolic field or method reference: the class named at the
// reference site plus the member name and type. It is a value key; the
// resolved declaring class is cached separately and never written back.
type MemberRef struct {
	Class      string
	Name       string
	Descriptor string
}

// String implements the Stringer interface.
func (r MemberRef) String() string {
	if len(r.Descriptor) > 0 && r.Descriptor[0] == '(' {
		return r.Class + "." + r.Name + r.Descriptor
	}
	return r.Class + "." + r.Name + ":" + r.Descriptor
}

// IsConstructor reports whether the reference names an instance initializer.
func (r MemberRef) IsConstructor() bool { return r.Name == "<init>" }

// memberRefAt reads the Fieldref/Methodref/InterfaceMethodref at index.
func memberRefAt(cf *classfile.Class, index uint16) (MemberRef, error) {
	owner, name, desc, err := cf.MemberRef(index)
	if err != nil {
		return MemberRef{}, &MalformedCodeError{Reason: err.Error()}
	}
	return MemberRef{Class: owner, Name: name, Descriptor: desc}, nil
}
