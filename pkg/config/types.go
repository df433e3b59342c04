// Package config decodes the manifest file (spec.md §6), resolves the
// on-disk directory layout relative to the run root, and declares the CLI
// surface. Base-directory fallback follows pi/pkg/config.Init's use of
// github.com/adrg/xdg; the literal pkgs/sources/build layout itself is
// always relative to the process's working directory (spec.md §9: "the
// pipeline expects the run root").
package config

import "fmt"

// DephashStrategy mirrors the original Rust Config.dephash_strategy /
// build::DepHashStrategy: accepted, validated, and logged, but — matching
// the shallow depth of the original's own implementation (SPEC_FULL.md §4.3)
// — it does not otherwise influence rebuild decisions.
type DephashStrategy string

const (
	// DephashNone disables dependency-hash based rebuild hints entirely.
	DephashNone DephashStrategy = "none"
	// DephashLoose is accepted and logged like the other values; no
	// dependency hashes are computed and rebuilds are not gated on them.
	DephashLoose DephashStrategy = "loose"
	// DephashStrict is accepted for forward compatibility; current
	// behavior is identical to DephashLoose.
	DephashStrict DephashStrategy = "strict"
)

// ParseDephashStrategy validates a raw config value, defaulting empty to
// DephashNone.
func ParseDephashStrategy(s string) (DephashStrategy, error) {
	switch DephashStrategy(s) {
	case "":
		return DephashNone, nil
	case DephashNone, DephashLoose, DephashStrict:
		return DephashStrategy(s), nil
	default:
		return "", fmt.Errorf("unknown dephash_strategy %q", s)
	}
}

// RecipeEntry is one value in the pkgbuilds map.
type RecipeEntry struct {
	URL string `yaml:"url"`
}

// File is the decoded manifest (spec.md §6 "Configuration file").
type File struct {
	Pkgbuilds map[string]RecipeEntry `yaml:"pkgbuilds"`
	Basepkgs  []string                `yaml:"basepkgs"`

	Proxy string `yaml:"proxy"`
	Gmr   string `yaml:"gmr"`
	Sign  string `yaml:"sign"`

	Holdpkg  bool `yaml:"holdpkg"`
	Holdgit  bool `yaml:"holdgit"`
	Skipint  bool `yaml:"skipint"`
	Nobuild  bool `yaml:"nobuild"`
	Noclean  bool `yaml:"noclean"`
	Nonet    bool `yaml:"nonet"`

	DephashStrategyRaw string `yaml:"dephash_strategy"`
}

// Defaults fills in the spec's documented defaults for fields the YAML
// document omitted.
func (f *File) Defaults() {
	if f.Basepkgs == nil {
		f.Basepkgs = []string{"base-devel"}
	}
}
