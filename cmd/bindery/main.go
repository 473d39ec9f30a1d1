package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/bindery"
	"github.com/jward/bindery/internal/check"
	"github.com/jward/bindery/internal/rules"
)

var (
	flagDB      string
	flagPackage string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "bindery",
	Short:         "Generate managed bindings for native C++ libraries",
	Long:          "Bindery parses native headers with tree-sitter, derives C-compatible FFI wrappers, checks them per environment, and generates the target-language surface, all tracked in a SQLite-backed item database.",
	SilenceErrors: true,
	SilenceUsage:  true,
	// No Run; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "bindery.db", "item database path")
	rootCmd.PersistentFlags().StringVar(&flagPackage, "package", "", "target package name (required)")
	rootCmd.MarkPersistentFlagRequired("package")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(deriveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(statusCmd)
}

// openEngine builds an Engine with the persistent flags plus any options.
func openEngine(opts ...bindery.Option) (*bindery.Engine, error) {
	return bindery.New(flagDB, flagPackage, opts...)
}

// reportCounters prints the stage's add/ignore tallies; the ignored count
// only appears when non-zero.
func reportCounters(e *bindery.Engine) {
	c := e.DrainCounters()
	if c.Added == 0 && c.Ignored == 0 {
		return
	}
	if c.Ignored == 0 {
		fmt.Fprintf(os.Stderr, "Items added: %d\n", c.Added)
	} else {
		fmt.Fprintf(os.Stderr, "Items added: %d, ignored: %d\n", c.Added, c.Ignored)
	}
}

var (
	flagLibraryVersion string
	flagFlagsEnums     []string
)

var parseCmd = &cobra.Command{
	Use:   "parse [headers...]",
	Short: "Discover native declarations in header files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runParse,
}

func init() {
	parseCmd.Flags().StringVar(&flagLibraryVersion, "library-version", "", "wrapped library version to record")
	parseCmd.Flags().StringArrayVar(&flagFlagsEnums, "flags-enum", nil, "enum to treat as bit flags, as ns::Name, repeatable")
}

func runParse(cmd *cobra.Command, args []string) error {
	e, err := openEngine(bindery.WithFlagsEnums(flagFlagsEnums...))
	if err != nil {
		return err
	}
	defer e.Close()

	// Re-running the parser invalidates prior native data wholesale.
	e.Database().ClearNative()
	if flagLibraryVersion != "" {
		e.Database().SetPackageVersion(flagLibraryVersion)
	}
	if err := e.Parse(cmd.Context(), args); err != nil {
		return err
	}
	reportCounters(e)
	return e.Save()
}

var flagRulesScript string

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive FFI wrappers from native declarations",
	Args:  cobra.NoArgs,
	RunE:  runDerive,
}

func init() {
	deriveCmd.Flags().StringVar(&flagRulesScript, "rules", "", "Risor script filtering which declarations get wrapped")
}

func runDerive(cmd *cobra.Command, args []string) error {
	var opts []bindery.Option
	if flagRulesScript != "" {
		filter, err := rules.Load(flagRulesScript)
		if err != nil {
			return err
		}
		opts = append(opts, bindery.WithRules(filter))
	}
	e, err := openEngine(opts...)
	if err != nil {
		return err
	}
	defer e.Close()

	e.Database().ClearFfi()
	if err := e.Derive(cmd.Context()); err != nil {
		return err
	}
	reportCounters(e)
	return e.Save()
}

var (
	flagEnvs        []string
	flagCompiler    string
	flagIncludeDirs []string
	flagClearChecks bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check FFI wrappers against the registered environments",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringArrayVar(&flagEnvs, "env", nil, "environment as target[@library-version], repeatable")
	checkCmd.Flags().StringVar(&flagCompiler, "compiler", "", "compiler driver for probes (default c++)")
	checkCmd.Flags().StringArrayVar(&flagIncludeDirs, "include", nil, "header search path for probes, repeatable")
	checkCmd.Flags().BoolVar(&flagClearChecks, "clear", false, "drop all previous check results first")
}

func runCheck(cmd *cobra.Command, args []string) error {
	prober := &check.CompilerProber{
		Compiler:    flagCompiler,
		IncludeDirs: flagIncludeDirs,
	}
	e, err := openEngine(bindery.WithProber(prober))
	if err != nil {
		return err
	}
	defer e.Close()

	if flagClearChecks {
		e.Database().ClearChecks()
	}
	for _, spec := range flagEnvs {
		target, version, _ := strings.Cut(spec, "@")
		e.RegisterEnvironment(bindery.Environment{Target: target, LibraryVersion: version})
	}
	if len(e.Database().Environments()) == 0 {
		return fmt.Errorf("no environments registered; pass at least one --env")
	}

	stats := e.Check(cmd.Context())
	fmt.Fprintf(os.Stderr, "Checks: %d added, %d changed, %d unchanged\n",
		stats.Added, stats.Changed, stats.Unchanged)
	for _, r := range stats.Regressions {
		fmt.Fprintf(os.Stderr, "Regression: ffi item #%s on %s: %s\n", r.Item, r.Env, r.Error)
	}
	return e.Save()
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate surface items from checked wrappers",
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	e.Database().ClearSurface()
	if err := e.Generate(); err != nil {
		return err
	}
	reportCounters(e)
	return e.Save()
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the item database",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	d := e.Database()
	passed := 0
	for _, item := range d.FfiItems() {
		if item.Checks.AnyPassed() {
			passed++
		}
	}
	fmt.Printf("package:       %s %s\n", d.PackageName(), d.PackageVersion())
	fmt.Printf("native items:  %d\n", len(d.NativeItems()))
	fmt.Printf("ffi items:     %d (%d passing)\n", len(d.FfiItems()), passed)
	fmt.Printf("surface items: %d\n", len(d.SurfaceItems()))
	for _, env := range d.Environments() {
		fmt.Printf("environment:   %s\n", env)
	}
	return nil
}
