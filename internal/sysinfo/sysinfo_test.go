package sysinfo

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuildInfo(t *testing.T, bi *debug.BuildInfo, ok bool) {
	t.Helper()
	orig := buildInfo
	buildInfo = func() (*debug.BuildInfo, bool) { return bi, ok }
	t.Cleanup(func() { buildInfo = orig })
}

func TestNew_ListsPackages(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Path: "example.com/lab", Version: "v1.2.0"},
		Deps: []*debug.Module{
			{Path: FrameworkModule, Version: "v0.3.0"},
			{Path: "gopkg.in/yaml.v3", Version: "v3.0.1"},
			{Path: "example.com/old", Version: "v1.0.0", Replace: &debug.Module{Version: "v1.0.1"}},
		},
	}, true)

	info := New("example.com/lab/steps")

	assert.Equal(t, runtime.Version(), info.Runtime)
	require.NotEmpty(t, info.Packages)
	assert.Equal(t, "example.com/lab/steps", info.Packages[0].Name)
	assert.Equal(t, "v1.2.0", info.Packages[0].Version)

	v, ok := info.Version(FrameworkModule)
	require.True(t, ok)
	assert.Equal(t, "v0.3.0", v)

	v, ok = info.Version("example.com/old")
	require.True(t, ok)
	assert.Equal(t, "v1.0.1", v)
}

func TestNew_WithoutBuildInfo(t *testing.T) {
	withBuildInfo(t, nil, false)

	info := New("")
	assert.NotEmpty(t, info.Platform)
	require.Len(t, info.Packages, 1)
	assert.Equal(t, FrameworkModule, info.Packages[0].Name)
}

func TestDictRoundTrip(t *testing.T) {
	info := SystemInfo{
		Runtime:  "go1.25",
		Platform: "linux/amd64",
		User:     "lab",
		Packages: []Package{{Name: "b", Version: "1"}, {Name: "a", Version: "2"}},
	}

	var back SystemInfo
	require.NoError(t, back.FromDict(info.ToDict()))
	assert.Equal(t, info, back)
}

func TestFromDict_IgnoresUnknownKeys(t *testing.T) {
	info := SystemInfo{Runtime: "keep"}
	d := SystemInfo{User: "u"}.ToDict()
	d.Delete("runtime")
	d.Set("kernel", "6.1")

	require.NoError(t, info.FromDict(d))
	assert.Equal(t, "keep", info.Runtime)
	assert.Equal(t, "u", info.User)
}

func TestClone(t *testing.T) {
	info := SystemInfo{Packages: []Package{{Name: "a", Version: "1"}}}
	cp := info.Clone()
	info.Packages[0].Version = "2"
	assert.Equal(t, "1", cp.Packages[0].Version)
}

func TestFromDict_LeavesCopiesAlone(t *testing.T) {
	info := SystemInfo{Packages: []Package{{Name: "a", Version: "1"}, {Name: "b", Version: "2"}}}
	cp := info

	incoming := SystemInfo{Packages: []Package{{Name: "c", Version: "3"}}}.ToDict()
	require.NoError(t, info.FromDict(incoming))

	assert.Equal(t, []Package{{Name: "c", Version: "3"}}, info.Packages)
	assert.Equal(t, []Package{{Name: "a", Version: "1"}, {Name: "b", Version: "2"}}, cp.Packages)
}
