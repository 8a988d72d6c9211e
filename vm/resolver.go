package vm

// ---------------------------------------------------------------------------
// Resolver: binding symbolic references to declaring classes
// ---------------------------------------------------------------------------

// ResolveField finds the class that declares ref's field, walking from c up
// the superclass chain and then through superinterfaces (for interface
// constants). The result is cached on c.
func (vm *VM) ResolveField(c *Class, ref MemberRef) (*Class, error) {
	key := MemberRef{Class: ref.Class, Name: ref.Name, Descriptor: ref.Descriptor}
	if owner, ok := c.resolved[key]; ok {
		return owner, nil
	}
	owner, err := vm.findDeclaring(c, func(k *Class) bool { return k.DeclaredField(ref.Name) != nil })
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, &UnresolvedSymbolError{Kind: "field", Symbol: ref.String()}
	}
	c.resolved[key] = owner
	return owner, nil
}

// ResolveMethod finds the class declaring a method with exactly ref's name
// and descriptor, starting at c and walking superclasses, then
// superinterfaces in declaration order. Array classes resolve against
// java/lang/Object. The result is cached on c.
func (vm *VM) ResolveMethod(c *Class, ref MemberRef) (*Method, error) {
	if owner, ok := c.resolved[ref]; ok {
		return owner.DeclaredMethod(ref.Name, ref.Descriptor), nil
	}
	start := c
	if c.IsArray() || c.IsPrimitive() {
		obj, err := vm.LoadClass(ObjectClass)
		if err != nil {
			return nil, err
		}
		start = obj
	}
	owner, err := vm.findDeclaring(start, func(k *Class) bool {
		return k.DeclaredMethod(ref.Name, ref.Descriptor) != nil
	})
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, &UnresolvedSymbolError{Kind: "method", Symbol: ref.String()}
	}
	c.resolved[ref] = owner
	return owner.DeclaredMethod(ref.Name, ref.Descriptor), nil
}

// findDeclaring walks the superclass chain of c, then its interfaces
// depth-first, returning the first class satisfying declares.
func (vm *VM) findDeclaring(c *Class, declares func(*Class) bool) (*Class, error) {
	for k := c; k != nil; k = k.Super {
		if declares(k) {
			return k, nil
		}
	}
	seen := make(map[string]bool)
	for k := c; k != nil; k = k.Super {
		found, err := vm.searchInterfaces(k, declares, seen)
		if err != nil || found != nil {
			return found, err
		}
	}
	return nil, nil
}

func (vm *VM) searchInterfaces(c *Class, declares func(*Class) bool, seen map[string]bool) (*Class, error) {
	for _, name := range c.Interfaces {
		if seen[name] {
			continue
		}
		seen[name] = true
		iface, err := vm.LoadClass(name)
		if err != nil {
			return nil, err
		}
		if declares(iface) {
			return iface, nil
		}
		found, err := vm.searchInterfaces(iface, declares, seen)
		if err != nil || found != nil {
			return found, err
		}
	}
	return nil, nil
}

// ResolveSpecial binds an invokespecial call site in caller. When caller
// carries ACC_SUPER, the target is not a constructor and caller is a proper
// subclass of the named class, lookup restarts at caller's superclass so
// that super.m() skips overrides. Otherwise the method binds on the named
// class itself.
func (vm *VM) ResolveSpecial(caller *Class, ref MemberRef) (*Method, error) {
	named, err := vm.LoadClass(ref.Class)
	if err != nil {
		return nil, err
	}
	if caller != nil && caller.Flags.IsSuper() && !ref.IsConstructor() && caller != named && caller.Super != nil {
		sub, err := vm.IsAssignable(caller, named)
		if err != nil {
			return nil, err
		}
		if sub {
			return vm.ResolveMethod(caller.Super, ref)
		}
	}
	if m := named.DeclaredMethod(ref.Name, ref.Descriptor); m != nil {
		return m, nil
	}
	if ref.IsConstructor() {
		return nil, &UnresolvedSymbolError{Kind: "method", Symbol: ref.String()}
	}
	// private and constructor calls always name the declaring class; other
	// special calls compiled without ACC_SUPER may name a subclass
	return vm.ResolveMethod(named, ref)
}

// IsAssignable reports whether a value of class a may be used where class
// b is expected: the types are equal, or b is reachable from a through
// superclasses and then declared interfaces in order. An array is
// assignable to Object, Cloneable and Serializable, and to another array
// type when its component type is a reference type assignable to the
// other's component type.
func (vm *VM) IsAssignable(a, b *Class) (bool, error) {
	if a == b || a.Descriptor == b.Descriptor {
		return true, nil
	}
	if a.IsArray() {
		if !b.IsArray() {
			switch b.Name {
			case ObjectClass, CloneableClass, SerializableClass:
				return true, nil
			}
			return false, nil
		}
		ca, cb := a.Descriptor.ComponentType(), b.Descriptor.ComponentType()
		if ca.IsPrimitive() || cb.IsPrimitive() {
			return ca == cb, nil
		}
		ea, err := vm.link(ca)
		if err != nil {
			return false, err
		}
		eb, err := vm.link(cb)
		if err != nil {
			return false, err
		}
		return vm.IsAssignable(ea, eb)
	}
	if a.Super != nil {
		ok, err := vm.IsAssignable(a.Super, b)
		if err != nil || ok {
			return ok, err
		}
	}
	for _, name := range a.Interfaces {
		iface, err := vm.LoadClass(name)
		if err != nil {
			return false, err
		}
		ok, err := vm.IsAssignable(iface, b)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// instanceOf reports whether obj's runtime class is assignable to the named
// type.
func (vm *VM) instanceOf(obj *Object, name string) (bool, error) {
	target, err := vm.LoadClass(name)
	if err != nil {
		return false, err
	}
	return vm.IsAssignable(obj.Class, target)
}
