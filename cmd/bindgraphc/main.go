// Command bindgraphc is a development/test harness for the binding graph
// compiler core: it is not an annotation-processor host (that integration is
// out of scope) but a CLI that loads a JSON-encoded fixture program model,
// runs the full pipeline, and prints diagnostics plus the emission plan.
//
// Subcommand dispatch follows the teacher's cmd/escalier/main.go pattern:
// a stdlib flag.FlagSet per subcommand, switched on os.Args[1].
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/bindgraph-core/bindgraph/internal/compiler"
	"github.com/bindgraph-core/bindgraph/internal/diag"
	"github.com/bindgraph-core/bindgraph/internal/emit"
	"github.com/bindgraph-core/bindgraph/internal/options"
)

// fileConfig is the optional TOML overlay loaded via --config, layered
// defaults -> fixture-embedded options -> file; recognized options override
// defaults.
type fileConfig struct {
	Options map[string]string `toml:"options"`
	Log     struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'compile' subcommand")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "compile":
		runCompile(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q; expected 'compile'\n", os.Args[1])
		os.Exit(1)
	}
}

func runCompile(args []string) {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	configPath := fs.String("config", "", "optional TOML config file overlaying fixture options")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, "failed to parse compile command:", err)
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: bindgraphc compile [--config FILE] FIXTURE.json")
		os.Exit(1)
	}
	fixturePath := fs.Arg(0)

	cfg := loadFileConfig(*configPath)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	p, root, fixtureOpts, err := loadFixture(fixturePath)
	if err != nil {
		logger.Error("loading fixture", "path", fixturePath, "error", err)
		os.Exit(1)
	}
	opts := options.FromMap(mergeOptions(fixtureOpts, cfg.Options))

	out := compiler.Compile(p, root, opts)
	for _, d := range out.Diagnostics {
		logDiagnostic(logger, d)
	}

	if out.Plan == nil {
		logger.Error("emission skipped: validation produced an error")
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(planSummary(out.Plan)); err != nil {
		logger.Error("encoding plan", "error", err)
		os.Exit(1)
	}
}

// loadFileConfig reads the optional TOML overlay. A missing --config is not
// an error: the fixture's own "options" map plus defaults stand alone, the
// same "config file is optional" posture as
// emergent-company-specmcp/internal/config.Load.
func loadFileConfig(path string) fileConfig {
	var cfg fileConfig
	if path == "" {
		return cfg
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		fmt.Fprintln(os.Stderr, "reading config file:", err)
		os.Exit(1)
	}
	return cfg
}

// mergeOptions layers the config file's options map over the fixture's
// embedded one, file wins, matching the documented defaults -> fixture ->
// file precedence.
func mergeOptions(fixtureOpts, fileOpts map[string]string) map[string]string {
	merged := make(map[string]string, len(fixtureOpts)+len(fileOpts))
	for k, v := range fixtureOpts {
		merged[k] = v
	}
	for k, v := range fileOpts {
		merged[k] = v
	}
	return merged
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func logDiagnostic(logger *slog.Logger, d diag.Diagnostic) {
	switch d.Severity() {
	case diag.SeverityError:
		logger.Error(d.Message())
	case diag.SeverityWarning:
		logger.Warn(d.Message())
	default:
		logger.Info(d.Message())
	}
}

// planTypeSummary and planSummary give the emission plan a stable JSON
// shape for the harness's stdout, independent of emit.Expr's internal
// field names.
type planTypeSummary struct {
	Name     string   `json:"fullyQualifiedName"`
	Strategy string   `json:"strategy"`
	Memo     string   `json:"memo"`
	Fields   []string `json:"fields"`
}

func planSummary(plan *emit.Plan) []planTypeSummary {
	out := make([]planTypeSummary, 0, len(plan.Types))
	for _, td := range plan.Types {
		fields := make([]string, 0, len(td.Fields))
		for _, f := range td.Fields {
			fields = append(fields, f.Name)
		}
		sort.Strings(fields)
		out = append(out, planTypeSummary{
			Name:     td.FullyQualifiedName,
			Strategy: strategyName(td.Strategy),
			Memo:     memoName(td.Memo),
			Fields:   fields,
		})
	}
	return out
}

func strategyName(s emit.Strategy) string {
	switch s {
	case emit.StrategySingletonInstance:
		return "singleton_instance"
	case emit.StrategyDelegate:
		return "delegate"
	default:
		return "class_constructor"
	}
}

func memoName(m emit.MemoStrategy) string {
	switch m {
	case emit.MemoDoubleCheck:
		return "double_check"
	case emit.MemoSingleCheck:
		return "single_check"
	default:
		return "none"
	}
}
