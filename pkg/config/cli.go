package config

// CLI is the declarative kong struct carrying exactly the flags spec.md §6
// lists. Replaces the teacher's generated pi/pkg/cdl (itself produced by an
// absent tool/cdlcompiler, not usable as an importable library) with
// github.com/alecthomas/kong, the declarative-struct CLI library also used
// by the cruciblehq-cruxd example repo.
type CLI struct {
	Config string   `arg:"" optional:"" default:"config.yaml" help:"Path to the manifest file."`
	Pkgs   []string `arg:"" optional:"" name:"pkgs" help:"Restrict the run to these recipe names."`

	Holdpkg bool `short:"P" help:"Skip recipe sync if the cache is already healthy."`
	Holdgit bool `short:"G" help:"Skip updating already-present git sources."`
	Skipint bool `short:"I" help:"Skip integrity checks for netfile sources."`
	Nobuild bool `short:"B" help:"Do everything up to (not including) building."`
	Noclean bool `short:"C" help:"Suppress janitor cleanup passes."`
	Nonet   bool `short:"N" help:"Build inside a network-isolated namespace."`

	Proxy string `short:"p" help:"Proxy URL: one-shot retry for git fetches, used for every netfile download."`
	Gmr   string `short:"g" name:"gmr" help:"Preferred git-mirror URL prefix, tried before upstream."`
	Sign  string `short:"s" help:"GPG key id used to sign produced artifacts."`

	Verbose bool `short:"v" help:"Enable debug-level logging."`
}
