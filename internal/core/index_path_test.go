package core

import "testing"

func TestIndexPathChildAndNextSibling(t *testing.T) {
	root := RootPath()
	if got := root.String(); got != "[0]" {
		t.Fatalf("RootPath().String() = %q, want [0]", got)
	}

	child := root.Child(2)
	if got := child.String(); got != "[0 2]" {
		t.Fatalf("Child(2).String() = %q, want [0 2]", got)
	}

	sibling := child.NextSibling()
	if got := sibling.String(); got != "[0 3]" {
		t.Fatalf("NextSibling().String() = %q, want [0 3]", got)
	}

	parent, ok := child.Parent()
	if !ok {
		t.Fatalf("Parent() ok = false, want true")
	}
	if !parent.Equal(root) {
		t.Fatalf("Parent() = %v, want %v", parent, root)
	}

	empty, ok := root.Parent()
	if !ok || len(empty) != 0 {
		t.Fatalf("RootPath().Parent() = (%v, %v), want ([], true)", empty, ok)
	}
}

func TestIndexPathCompareLexicographic(t *testing.T) {
	cases := []struct {
		a, b IndexPath
		want int
	}{
		{IndexPath{0}, IndexPath{0}, 0},
		{IndexPath{0}, IndexPath{1}, -1},
		{IndexPath{1}, IndexPath{0}, 1},
		{IndexPath{0, 2}, IndexPath{0, 3}, -1},
		{IndexPath{0, 0, 0}, IndexPath{0, 0}, 1},
		{IndexPath{0, 0}, IndexPath{0, 0, 0}, -1},
	}
	for _, c := range cases {
		if got := c.a.Compare(c.b); sign(got) != sign(c.want) {
			t.Errorf("%v.Compare(%v) = %d, want sign %d", c.a, c.b, got, c.want)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
