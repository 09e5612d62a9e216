package fancy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atlanticdynamic/simkernel/internal/fancy"
)

func TestTree(t *testing.T) {
	tree := fancy.Tree()
	assert.NotNil(t, tree)

	tree.Root("Root Node")
	child := tree.Child("Child Node")
	child.Child("Grandchild")

	treeString := tree.String()
	assert.Contains(t, treeString, "Root Node")
	assert.Contains(t, treeString, "Child Node")
	assert.Contains(t, treeString, "Grandchild")
}

func TestBranchNode(t *testing.T) {
	parent := fancy.BranchNode("Variables", "(2)")
	parent.Child("x").Child("double")
	parent.Child("v")

	treeString := parent.String()
	assert.Contains(t, treeString, "Variables")
	assert.Contains(t, treeString, "(2)")
	assert.Contains(t, treeString, "x")
	assert.Contains(t, treeString, "double")
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxLength int
		want      string
	}{
		{"shorter", "Short string", 20, "Short string"},
		{"exact", "12345", 5, "12345"},
		{"longer", "This is a very long string that should be truncated", 15, "This is a ve..."},
		{"empty", "", 10, ""},
		{"ellipsis only", "This is a very long string", 3, "..."},
		{"one character", "This is a very long string", 4, "T..."},
		{"too short for ellipsis", "Any string", 2, ".."},
		{"negative", "Any string", -1, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, fancy.TruncateString(tc.input, tc.maxLength))
		})
	}
}

func TestComponentTree(t *testing.T) {
	tree := fancy.NewComponentTree("Root")
	assert.NotNil(t, tree.Tree())

	tree.AddBranch("Branch 1")
	tree.AddChild(fancy.NewComponentTree("Nested").Tree())

	rendered := tree.String()
	assert.Contains(t, rendered, "Root")
	assert.Contains(t, rendered, "Branch 1")
	assert.Contains(t, rendered, "Nested")
}

func TestDeclarationTrees(t *testing.T) {
	v := fancy.VariableTree("pos")
	v.AddChild("Type: double")
	assert.Contains(t, v.String(), "pos")
	assert.Contains(t, v.String(), "Type: double")

	m := fancy.ModuleTree("integrator")
	assert.Contains(t, m.String(), "integrator")
}
