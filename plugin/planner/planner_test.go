package planner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-toolchain/plugin"
	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/planner"
	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
	"github.com/reglet-dev/reglet-toolchain/plugin/repository"
	"github.com/reglet-dev/reglet-toolchain/plugin/resolvers"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

const baseURL = "https://downloads.example.org"

func newVersion(t *testing.T, kind values.Kind, name, v string, opts ...entities.VersionOption) *entities.Version {
	t.Helper()
	opts = append([]entities.VersionOption{
		entities.WithArtifactURL(baseURL + "/" + kind.Dir() + "/" + name + "/" + v + "/" + name + ".phar"),
	}, opts...)
	ver, err := entities.NewVersion(kind, name, v, opts...)
	require.NoError(t, err)
	return ver
}

// testResolver serves foo 1.0.0/1.0.1 with tool bar 2.0.0/2.1.0 and baz 1.0.0.
func testResolver(t *testing.T) ports.VersionResolver {
	t.Helper()
	catalog := repository.NewCatalogRepository("test")
	for _, v := range []string{"1.0.0", "1.0.1"} {
		require.NoError(t, catalog.AddPluginVersion(newVersion(t, values.KindPlugin, "foo", v)))
	}
	require.NoError(t, catalog.AddPluginVersion(newVersion(t, values.KindPlugin, "baz", "1.0.0")))
	require.NoError(t, catalog.AddPluginVersion(newVersion(t, values.KindPlugin, "needs-ext", "1.0.0",
		entities.WithRequirements(values.NewRequirementList(values.Requirement{Name: "ext-nonexistent", Constraint: "*"})))))
	for _, v := range []string{"2.0.0", "2.1.0"} {
		require.NoError(t, catalog.AddToolVersion("foo", newVersion(t, values.KindTool, "bar", v)))
	}
	return resolvers.NewPoolResolver([]ports.Repository{catalog}, resolvers.WithLogger(plugin.NewTestLogger()))
}

func desiredState(t *testing.T, reqs ...entities.PluginRequirement) *entities.DesiredState {
	t.Helper()
	d, err := entities.NewDesiredState(reqs...)
	require.NoError(t, err)
	return d
}

func purposes(tasks []planner.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.PurposeDescription())
	}
	return out
}

func TestPlan_InstallFromScratch(t *testing.T) {
	t.Parallel()

	p := planner.NewUpdatePlanner(testResolver(t), planner.WithLogger(plugin.NewTestLogger()))
	tasks, err := p.Plan(context.Background(),
		desiredState(t, entities.PluginRequirement{
			Name:       "foo",
			Constraint: "^1.0",
			Tools:      []entities.ToolRequirement{{Name: "bar", Constraint: "~2.0.0"}},
		}),
		entities.NewInstalledRepository(),
	)
	require.NoError(t, err)

	want := []string{
		"Will install plugin foo in version 1.0.1",
		"Will install tool bar in version 2.0.0",
	}
	if diff := cmp.Diff(want, purposes(tasks)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, planner.KindInstall, tasks[1].Kind())
	assert.Equal(t, values.KindTool, tasks[1].Subject())
	assert.Equal(t, "foo", tasks[1].PluginName())
	assert.Equal(t, "foo", tasks[1].Desired().Plugin())
	assert.Equal(t,
		"Download tool bar 2.0.0 from "+baseURL+"/tools/bar/2.0.0/bar.phar for plugin foo",
		tasks[1].ExecutionDescription())
}

func TestPlan_Wording(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		constraint string
		force      bool
		installed  string
		want       string
		kind       planner.TaskKind
	}{
		{
			name:       "upgrade",
			constraint: "1.0.1",
			installed:  "1.0.0",
			want:       "Will upgrade plugin foo from version 1.0.0 to version 1.0.1",
			kind:       planner.KindUpgrade,
		},
		{
			name:       "downgrade",
			constraint: "1.0.0",
			installed:  "1.0.1",
			want:       "Will downgrade plugin foo from version 1.0.1 to version 1.0.0",
			kind:       planner.KindDowngrade,
		},
		{
			name:       "downgrade ignores force",
			constraint: "1.0.0",
			force:      true,
			installed:  "1.0.1",
			want:       "Will downgrade plugin foo from version 1.0.1 to version 1.0.0",
			kind:       planner.KindDowngrade,
		},
		{
			name:       "reinstall when forced",
			constraint: "1.0.1",
			force:      true,
			installed:  "1.0.1",
			want:       "Will reinstall plugin foo in version 1.0.1",
			kind:       planner.KindReinstall,
		},
		{
			name:       "keep when not forced",
			constraint: "1.0.1",
			installed:  "1.0.1",
			want:       "Will keep plugin foo in version 1.0.1",
			kind:       planner.KindKeep,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			installed := entities.NewInstalledRepository()
			installed.AddPlugin(newVersion(t, values.KindPlugin, "foo", tt.installed))

			p := planner.NewUpdatePlanner(testResolver(t))
			tasks, err := p.Plan(context.Background(),
				desiredState(t, entities.PluginRequirement{Name: "foo", Constraint: tt.constraint, Force: tt.force}),
				installed,
			)
			require.NoError(t, err)
			require.Len(t, tasks, 1)
			assert.Equal(t, tt.want, tasks[0].PurposeDescription())
			assert.Equal(t, tt.kind, tasks[0].Kind())
			assert.Equal(t, tt.force, tasks[0].Force())
		})
	}
}

func TestPlan_ToolWording(t *testing.T) {
	t.Parallel()

	installed := entities.NewInstalledRepository()
	installed.AddPlugin(newVersion(t, values.KindPlugin, "foo", "1.0.1"))
	require.NoError(t, installed.AddTool("foo", newVersion(t, values.KindTool, "bar", "2.0.0")))
	require.NoError(t, installed.AddTool("foo", newVersion(t, values.KindTool, "stale", "0.1.0")))

	p := planner.NewUpdatePlanner(testResolver(t))
	tasks, err := p.Plan(context.Background(),
		desiredState(t, entities.PluginRequirement{
			Name:       "foo",
			Constraint: "^1.0",
			Tools:      []entities.ToolRequirement{{Name: "bar", Constraint: "^2.0"}},
		}),
		installed,
	)
	require.NoError(t, err)

	want := []string{
		"Will keep plugin foo in version 1.0.1",
		"Will upgrade tool bar from version 2.0.0 to version 2.1.0",
		"Will remove tool stale in version 0.1.0",
	}
	if diff := cmp.Diff(want, purposes(tasks)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Remove tool stale for plugin foo", tasks[2].ExecutionDescription())
	assert.Equal(t, "Nothing to do for plugin foo 1.0.1", tasks[0].ExecutionDescription())
}

func TestPlan_OrderingAndRemovals(t *testing.T) {
	t.Parallel()

	installed := entities.NewInstalledRepository()
	installed.AddPlugin(newVersion(t, values.KindPlugin, "zeta", "1.0.0"))
	installed.AddPlugin(newVersion(t, values.KindPlugin, "alpha", "3.0.0"))
	require.NoError(t, installed.AddTool("alpha", newVersion(t, values.KindTool, "two", "1.0.0")))
	require.NoError(t, installed.AddTool("alpha", newVersion(t, values.KindTool, "one", "1.0.0")))

	p := planner.NewUpdatePlanner(testResolver(t))
	tasks, err := p.Plan(context.Background(),
		desiredState(t,
			entities.PluginRequirement{Name: "foo"},
			entities.PluginRequirement{Name: "baz"},
		),
		installed,
	)
	require.NoError(t, err)

	want := []string{
		"Will install plugin foo in version 1.0.1",
		"Will install plugin baz in version 1.0.0",
		"Will remove tool one in version 1.0.0",
		"Will remove tool two in version 1.0.0",
		"Will remove plugin alpha in version 3.0.0",
		"Will remove plugin zeta in version 1.0.0",
	}
	if diff := cmp.Diff(want, purposes(tasks)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_Idempotent(t *testing.T) {
	t.Parallel()

	installed := entities.NewInstalledRepository()
	installed.AddPlugin(newVersion(t, values.KindPlugin, "foo", "1.0.0"))
	installed.AddPlugin(newVersion(t, values.KindPlugin, "old", "1.0.0"))
	desired := desiredState(t,
		entities.PluginRequirement{Name: "foo", Tools: []entities.ToolRequirement{{Name: "bar"}}},
		entities.PluginRequirement{Name: "baz", Constraint: "1.0.0", Force: true},
	)

	p := planner.NewUpdatePlanner(testResolver(t))
	first, err := p.Plan(context.Background(), desired, installed)
	require.NoError(t, err)
	second, err := p.Plan(context.Background(), desired, installed)
	require.NoError(t, err)

	if diff := cmp.Diff(purposes(first), purposes(second)); diff != "" {
		t.Errorf("replanning changed the plan (-first +second):\n%s", diff)
	}
	for i := range first {
		assert.Equal(t, first[i].Kind(), second[i].Kind())
		assert.Equal(t, first[i].Desired(), second[i].Desired())
	}
}

func TestPlan_BatchesResolutionFailures(t *testing.T) {
	t.Parallel()

	p := planner.NewUpdatePlanner(testResolver(t))
	tasks, err := p.Plan(context.Background(),
		desiredState(t,
			entities.PluginRequirement{Name: "foo", Constraint: "^9.0"},
			entities.PluginRequirement{Name: "baz"},
			entities.PluginRequirement{Name: "missing", Tools: []entities.ToolRequirement{{Name: "gone", Constraint: "^1.0"}}},
		),
		entities.NewInstalledRepository(),
	)
	require.Error(t, err)
	assert.Nil(t, tasks, "no partial plan")
	assert.True(t, errors.Is(err, entities.ErrVersionNotFound))

	msg := err.Error()
	assert.Contains(t, msg, `plugin foo matches constraint "^9.0"`)
	assert.Contains(t, msg, "plugin missing")
	assert.Contains(t, msg, `tool gone (plugin missing) matches constraint "^1.0"`)
}

func TestPlan_PlatformRequirements(t *testing.T) {
	t.Parallel()

	checker := &plugin.MockPlatformChecker{Available: map[string]string{"php": "8.2.0"}}
	p := planner.NewUpdatePlanner(testResolver(t), planner.WithPlatformChecker(checker))

	_, err := p.Plan(context.Background(),
		desiredState(t, entities.PluginRequirement{Name: "needs-ext"}),
		entities.NewInstalledRepository(),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrRequirementNotFulfilled))

	var unmet *entities.UnfulfilledRequirementError
	require.True(t, errors.As(err, &unmet))
	assert.Equal(t, "ext-nonexistent", unmet.Requirement)
}

func TestPlan_Only(t *testing.T) {
	t.Parallel()

	installed := entities.NewInstalledRepository()
	installed.AddPlugin(newVersion(t, values.KindPlugin, "foo", "1.0.0"))
	installed.AddPlugin(newVersion(t, values.KindPlugin, "baz", "0.9.0"))
	installed.AddPlugin(newVersion(t, values.KindPlugin, "legacy", "1.0.0"))

	p := planner.NewUpdatePlanner(testResolver(t), planner.WithOnly("f*"))
	tasks, err := p.Plan(context.Background(),
		desiredState(t,
			entities.PluginRequirement{Name: "foo"},
			entities.PluginRequirement{Name: "baz"},
		),
		installed,
	)
	require.NoError(t, err)

	want := []string{
		"Will upgrade plugin foo from version 1.0.0 to version 1.0.1",
		"Will keep plugin baz in version 0.9.0",
		"Will keep plugin legacy in version 1.0.0",
	}
	if diff := cmp.Diff(want, purposes(tasks)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}

	_, err = planner.NewUpdatePlanner(testResolver(t), planner.WithOnly("[")).
		Plan(context.Background(), desiredState(t), installed)
	assert.Error(t, err)
}

func TestPlan_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := planner.NewUpdatePlanner(testResolver(t)).Plan(ctx,
		desiredState(t, entities.PluginRequirement{Name: "foo"}),
		nil,
	)
	assert.ErrorIs(t, err, context.Canceled)
}
