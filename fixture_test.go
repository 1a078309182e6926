package apitree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeModule is an in-memory Namespace.
type fakeModule struct {
	name    string
	pkg     bool
	source  string
	hasSrc  bool
	members []Member
	err     error
}

func (m *fakeModule) Members() ([]Member, error) { return m.members, m.err }
func (m *fakeModule) IsPackage() bool            { return m.pkg }
func (m *fakeModule) QualifiedName() string      { return m.name }
func (m *fakeModule) SourceText() ([]byte, bool) {
	if !m.hasSrc {
		return nil, false
	}
	return []byte(m.source), true
}

func (m *fakeModule) add(name string, value any) *fakeModule {
	m.members = append(m.members, Member{Name: name, Value: value})
	return m
}

func newPackage(name, source string) *fakeModule {
	return &fakeModule{name: name, pkg: true, source: source, hasSrc: true}
}

func newModule(name, source string) *fakeModule {
	return &fakeModule{name: name, source: source, hasSrc: true}
}

type fakeDef struct {
	qual string
	kind string
}

func (d *fakeDef) QualifiedName() string { return d.qual }
func (d *fakeDef) Kind() string          { return d.kind }

type fakeFeature struct{ name string }

func (f *fakeFeature) FeatureName() string { return f.name }

// newFixture builds the following package:
//
//	pkg/__init__   from __future__ import annotations; import os;
//	               from pkg import sub, _internal, core; from pkg.core import Model
//	pkg/sub/__init__  from pkg.sub import mod; import pkg   (plus implicit "extra")
//	pkg/sub/mod    from pkg.sub import deep; from pkg.core import Model; def Thing
//	pkg/core       class Model; def helper
func newFixture() *fakeModule {
	model := &fakeDef{qual: "pkg.core.Model", kind: "class"}

	core := newModule("pkg.core", "class Model: ...\ndef helper(): ...\n").
		add("__name__", "pkg.core").
		add("Model", model).
		add("helper", &fakeDef{qual: "pkg.core.helper", kind: "function"})

	deep := newModule("pkg.sub.deep", "").
		add("Leaf", &fakeDef{qual: "pkg.sub.deep.Leaf", kind: "class"})

	mod := newModule("pkg.sub.mod", "from pkg.sub import deep\nfrom pkg.core import Model\n").
		add("deep", deep).
		add("Model", model).
		add("Thing", &fakeDef{qual: "pkg.sub.mod.Thing", kind: "function"})

	extra := newModule("pkg.sub.extra", "")

	root := newPackage("pkg", `from __future__ import annotations
import os
from pkg import sub
from pkg import _internal
from pkg.core import Model
from pkg import core
`)

	sub := newPackage("pkg.sub", "from pkg.sub import mod\nimport pkg\n").
		add("__name__", "pkg.sub").
		add("mod", mod).
		add("pkg", root).
		add("extra", extra)

	root.
		add("__name__", "pkg").
		add("__doc__", nil).
		add("annotations", &fakeFeature{name: "annotations"}).
		add("os", &fakeModule{name: "os"}).
		add("sub", sub).
		add("_internal", newModule("pkg._internal", "")).
		add("core", core).
		add("Model", model).
		add("VERSION", "1.0").
		add("_helper", &fakeDef{qual: "pkg._helper", kind: "function"})
	return root
}

func buildFixture(t *testing.T, info ModuleInfo, opts ...TreeOption) (*Node, *RefIndex) {
	t.Helper()
	idx := NewRefIndex()
	opts = append([]TreeOption{WithIndex(idx)}, opts...)
	root, err := BuildTree(context.Background(), newFixture(), info, opts...)
	require.NoError(t, err)
	return root, idx
}

// child returns the direct child of n bound under name.
func child(t *testing.T, n *Node, name string) *Node {
	t.Helper()
	children, err := n.Children()
	require.NoError(t, err)
	for _, c := range children {
		if c.Symbol().Name() == name {
			return c
		}
	}
	t.Fatalf("%s has no child %q", n.Symbol().QualName(), name)
	return nil
}
