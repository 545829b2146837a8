package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/modkit/cli/internal/errors"
)

func dir(name string, children ...Node) Node {
	return Node{Name: name, IsDir: true, Children: children}
}

func file(name string) Node {
	return Node{Name: name}
}

func TestPlanReconcile(t *testing.T) {
	preserve := PreserveName("node_modules")

	tests := []struct {
		name string
		snap Snapshot
		set  []string
		want Plan
	}{
		{
			name: "missing tree is created",
			snap: Snapshot{},
			set:  []string{"lib"},
			want: Plan{CreateRoot: true},
		},
		{
			name: "prunes selected folders and drops the rest",
			snap: Snapshot{Exists: true, Children: []Node{
				dir("moduleB", file("b.js")),
				dir("moduleA", dir("node_modules"), dir("src"), file("package.json")),
				file("stray.txt"),
			}},
			set: []string{"lib", "moduleA"},
			want: Plan{
				Deletes:   []string{"moduleA/package.json", "moduleA/src", "moduleB", "stray.txt"},
				Preserved: []string{"moduleA/node_modules"},
				Reused:    []string{"moduleA"},
			},
		},
		{
			name: "cache marker that is a file is not preserved",
			snap: Snapshot{Exists: true, Children: []Node{
				dir("lib", file("node_modules")),
			}},
			set: []string{"lib"},
			want: Plan{
				Deletes: []string{"lib/node_modules"},
				Reused:  []string{"lib"},
			},
		},
		{
			name: "nested cache names are only matched one level down",
			snap: Snapshot{Exists: true, Children: []Node{
				dir("node_modules"),
				dir("lib", dir("node_modules_old")),
			}},
			set: []string{"lib"},
			want: Plan{
				Deletes: []string{"lib/node_modules_old", "node_modules"},
				Reused:  []string{"lib"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanReconcile(tt.snap, tt.set, preserve)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanReconcile_FileWhereFolderExpected(t *testing.T) {
	snap := Snapshot{Exists: true, Children: []Node{
		dir("moduleB"),
		file("lib"),
	}}

	plan, err := PlanReconcile(snap, []string{"lib"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, oerrors.ErrExtraction))
	assert.Empty(t, plan.Deletes)
}

func TestPlanReconcile_EmptySet(t *testing.T) {
	_, err := PlanReconcile(Snapshot{}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, oerrors.ErrInvalidSelection))
}

func TestPlanReconcile_GrowingSelectionKeepsCaches(t *testing.T) {
	// A module that stays selected keeps its cache no matter which
	// other modules join the selection.
	snap := Snapshot{Exists: true, Children: []Node{
		dir("moduleA", dir("node_modules"), dir("packages")),
		dir("lib", dir("node_modules")),
	}}

	for _, set := range [][]string{
		{"lib", "moduleA"},
		{"lib", "moduleA", "moduleB"},
		{"moduleC", "lib", "moduleA"},
	} {
		plan, err := PlanReconcile(snap, set, PreserveName("node_modules"))
		require.NoError(t, err)
		assert.Equal(t, []string{"lib/node_modules", "moduleA/node_modules"}, plan.Preserved)
		assert.NotContains(t, plan.Deletes, "moduleA")
		assert.NotContains(t, plan.Deletes, "lib")
	}
}

func TestPreserveName(t *testing.T) {
	p := PreserveName("node_modules")
	assert.True(t, p("node_modules"))
	assert.False(t, p("node_modules2"))
	assert.False(t, PreserveName("")(""))
}
