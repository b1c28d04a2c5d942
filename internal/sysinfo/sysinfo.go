// Package sysinfo snapshots the environment a history record was created in.
package sysinfo

import (
	"os"
	"os/user"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/danielpatrickdp/reprolab/internal/dict"
)

// FrameworkModule is the module path of this framework, always listed in Packages.
const FrameworkModule = "github.com/danielpatrickdp/reprolab"

// #region types
// Package is one entry of the installed-package registry.
type Package struct {
	Name    string
	Version string
}

// SystemInfo is a value snapshot of runtime, platform, user and package versions.
type SystemInfo struct {
	Runtime  string
	Platform string
	User     string
	Packages []Package
}

// #endregion types

// #region capture
// buildInfo is swapped in tests.
var buildInfo = debug.ReadBuildInfo

// New captures the current environment. packageName, if set, is the package
// on whose behalf records are created; it is listed first. New never fails.
func New(packageName string) SystemInfo {
	info := SystemInfo{
		Runtime:  runtime.Version(),
		Platform: platform(),
		User:     login(),
	}

	seen := map[string]bool{}
	add := func(name, version string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		info.Packages = append(info.Packages, Package{Name: name, Version: version})
	}

	bi, ok := buildInfo()
	versions := map[string]string{}
	mainPath := ""
	if ok && bi != nil {
		mainPath = bi.Main.Path
		versions[bi.Main.Path] = bi.Main.Version
		for _, dep := range bi.Deps {
			if dep == nil {
				continue
			}
			v := dep.Version
			if dep.Replace != nil && dep.Replace.Version != "" {
				v = dep.Replace.Version
			}
			versions[dep.Path] = v
		}
	}

	if packageName != "" {
		add(packageName, lookupVersion(versions, packageName))
	}
	add(FrameworkModule, lookupVersion(versions, FrameworkModule))
	if mainPath != "" {
		add(mainPath, versions[mainPath])
	}
	if ok && bi != nil {
		for _, dep := range bi.Deps {
			if dep != nil {
				add(dep.Path, versions[dep.Path])
			}
		}
	}
	return info
}

// lookupVersion matches name against module paths, allowing name to be a
// package inside a module.
func lookupVersion(versions map[string]string, name string) string {
	if v, ok := versions[name]; ok {
		return v
	}
	best, bestLen := "", 0
	for path, v := range versions {
		if path != "" && strings.HasPrefix(name, path+"/") && len(path) > bestLen {
			best, bestLen = v, len(path)
		}
	}
	return best
}

func platform() string {
	p := runtime.GOOS + "/" + runtime.GOARCH
	if host, err := os.Hostname(); err == nil && host != "" {
		p += " (" + host + ")"
	}
	return p
}

func login() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, key := range []string{"USER", "LOGNAME", "USERNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// #endregion capture

// #region lookup
// Version returns the recorded version of name and whether it was listed.
func (s SystemInfo) Version(name string) (string, bool) {
	for _, p := range s.Packages {
		if p.Name == name {
			return p.Version, true
		}
	}
	return "", false
}

// Clone returns a copy that shares nothing with s.
func (s SystemInfo) Clone() SystemInfo {
	s.Packages = append([]Package(nil), s.Packages...)
	return s
}

// #endregion lookup

// #region dict
// ToDict exports the snapshot with packages as an ordered name→version document.
func (s SystemInfo) ToDict() *dict.Dict {
	pkgs := dict.New()
	for _, p := range s.Packages {
		pkgs.Set(p.Name, p.Version)
	}
	return dict.New().
		Set("runtime", s.Runtime).
		Set("packages", pkgs).
		Set("platform", s.Platform).
		Set("user", s.User)
}

// FromDict sets the known fields present in d.
func (s *SystemInfo) FromDict(d *dict.Dict) error {
	if d == nil {
		return nil
	}
	if d.Has("runtime") {
		s.Runtime = d.String("runtime")
	}
	if d.Has("platform") {
		s.Platform = d.String("platform")
	}
	if d.Has("user") {
		s.User = d.String("user")
	}
	if pkgs := d.Dict("packages"); pkgs != nil {
		s.Packages = nil
		for _, name := range pkgs.Keys() {
			s.Packages = append(s.Packages, Package{Name: name, Version: pkgs.String(name)})
		}
	}
	return nil
}

// #endregion dict
