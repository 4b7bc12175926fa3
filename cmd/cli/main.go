package main

import (
	"fmt"
	"os"

	"github.com/mcpconform/mcpconform/pkg/ui"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runConformance(os.Args[2:])
	case "serve", "server", "refserver":
		runServe()
	case "selftest", "self-test":
		runSelftest()
	case "compare", "diff":
		runCompare()
	case "score", "rescore":
		runScore()
	case "checks", "list", "suite":
		runChecks()
	case "-h", "--help", "help":
		printUsage()
		os.Exit(0)
	case "docs", "doc", "man", "manual":
		printDetailedDocs()
		os.Exit(0)
	case "-v", "--version", "version":
		ui.PrintMiniBanner()
		os.Exit(0)
	default:
		// Assume flags for the default "run" command
		runConformance(os.Args[1:])
	}
}

func printUsage() {
	ui.PrintBanner()
	os.Stderr.Sync()

	fmt.Println(ui.SectionStyle.Render("MCP CONFORMANCE TESTING"))
	fmt.Println()
	fmt.Printf("  %s\n", ui.SubtitleStyle.Render("Quick Example:"))
	fmt.Printf("    %s\n", ui.ConfigValueStyle.Render("mcpconform run -u https://mcp.example.com/mcp"))
	fmt.Printf("    %s\n", ui.ConfigValueStyle.Render("mcpconform run \"python3 my_server.py\" -transport stdio"))
	fmt.Printf("    %s\n", ui.ConfigValueStyle.Render("mcpconform run -u http://localhost:3000/mcp -o report/ -format json,html"))
	fmt.Println()
	fmt.Printf("  %s\n", ui.SubtitleStyle.Render("Self-Test Example:"))
	fmt.Printf("    %s\n", ui.ConfigValueStyle.Render("mcpconform serve -addr :3000           # terminal 1"))
	fmt.Printf("    %s\n", ui.ConfigValueStyle.Render("mcpconform run -u http://localhost:3000/mcp  # terminal 2"))
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("COMMANDS"))
	fmt.Println()
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("run     "), "Run the conformance suite against a server (default command)")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("serve   "), "Start the reference server (HTTP+SSE or stdio)")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("selftest"), "Run the suite against the in-process reference server")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("compare "), "Diff two run reports (new failures, fixed, score delta)")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("score   "), "Recompute the weighted score from a stored report")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("checks  "), "List the built-in checks with category and level")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("docs    "), "Detailed documentation for every flag")
	fmt.Printf("  %s  %s\n", ui.StatValueStyle.Render("version "), "Print version and exit")
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("COMMON FLAGS (run)"))
	fmt.Println()
	fmt.Println("    -u, -target        Endpoint URL or peer command line")
	fmt.Println("    -transport         auto, http, stdio (default: auto)")
	fmt.Println("    -revision          Protocol revision to offer (default: latest)")
	fmt.Println("    -category          Restrict to categories: core,tools,async,spec")
	fmt.Println("    -skip              Check names to skip (comma separated)")
	fmt.Println("    -strict            SHOULD and MAY failures also fail the run")
	fmt.Println("    -o                 Report output directory")
	fmt.Println("    -format            console,json,jsonl,junit,markdown,html,pdf")
	fmt.Println("    -H                 Extra HTTP header (repeatable, \"Name: Value\")")
	fmt.Println("    -metrics           Prometheus listen address (e.g. :9090)")
	fmt.Println("    -otel              OTLP gRPC collector endpoint")
	fmt.Println()
	fmt.Println("  Run 'mcpconform docs' for the full reference.")
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("EXIT CODES"))
	fmt.Println()
	fmt.Println("    0  compliant        1  non-compliant     2  usage error")
	fmt.Println("    3  transport error  4  internal error")
	fmt.Println()
}

func printDetailedDocs() {
	ui.PrintCompactBanner()

	fmt.Println(ui.SectionStyle.Render("RUN"))
	fmt.Println()
	fmt.Println("  mcpconform run [flags] [target]")
	fmt.Println()
	fmt.Println("  The target is either an HTTP(S) endpoint URL or the command line of a")
	fmt.Println("  peer to spawn over stdio. -transport auto infers which from the shape")
	fmt.Println("  of the target string.")
	fmt.Println()
	fmt.Println("  Target:")
	fmt.Println("    -u, -target string   Endpoint URL or peer command line")
	fmt.Println("    -transport string    auto, http, stdio (default auto)")
	fmt.Println("    -revision string     Protocol revision to offer; \"latest\" picks the newest")
	fmt.Println("    -dir string          Working directory for a spawned peer")
	fmt.Println("    -env-file string     .env file applied to the spawned peer")
	fmt.Println("    -H value             Extra HTTP header, repeatable (\"Name: Value\")")
	fmt.Println("    -insecure            Skip TLS verification")
	fmt.Println("    -session-query       Mirror the session id into the query string")
	fmt.Println()
	fmt.Println("  Selection:")
	fmt.Println("    -suite string        YAML suite file with per-run overrides")
	fmt.Println("    -category value      Keep only these categories: core,tools,async,spec")
	fmt.Println("    -skip value          Check names to exclude")
	fmt.Println("    -skip-lifecycle      Do not grade lifecycle checks")
	fmt.Println()
	fmt.Println("  Execution:")
	fmt.Println("    -strict              Any counted failure fails the run, not just MUST")
	fmt.Println("    -throttle int        Pause between protocol requests in milliseconds")
	fmt.Println("    -core-timeout int    Core check deadline in seconds (default 10)")
	fmt.Println("    -spec-timeout int    Edge-case probe deadline in seconds (default 15)")
	fmt.Println("    -timeout int         Tool call deadline in seconds (default 30)")
	fmt.Println("    -async-timeout int   Async operation deadline in seconds (default 60)")
	fmt.Println()
	fmt.Println("  Output:")
	fmt.Println("    -o string            Report directory (empty: console only)")
	fmt.Println("    -format value        console,json,jsonl,junit,markdown,html,pdf")
	fmt.Println("    -verbose             Verbose output, logs every event")
	fmt.Println("    -quiet               Suppress progress output")
	fmt.Println("    -no-color            Disable colored output")
	fmt.Println("    -metrics string      Prometheus listen address (empty: disabled)")
	fmt.Println("    -otel string         OTLP gRPC collector endpoint (empty: disabled)")
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("SERVE"))
	fmt.Println()
	fmt.Println("  mcpconform serve [-addr :3000 | -stdio]")
	fmt.Println()
	fmt.Println("    -addr string         HTTP listen address (default :3000)")
	fmt.Println("    -stdio               Serve one session over stdin/stdout instead")
	fmt.Println("    -name string         serverInfo.name in the initialize response")
	fmt.Println("    -instructions string Usage text advertised at initialize")
	fmt.Println("    -page-size int       tools/list page size (0: single page)")
	fmt.Println("    -verbose             Log every frame")
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("SELFTEST"))
	fmt.Println()
	fmt.Println("  mcpconform selftest [-revision 2025-06-18] [-strict]")
	fmt.Println()
	fmt.Println("  Starts the reference server on a loopback port and runs the full")
	fmt.Println("  suite against it. A clean exit proves harness and reference server")
	fmt.Println("  agree on every check.")
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("COMPARE"))
	fmt.Println()
	fmt.Println("  mcpconform compare baseline.json current.json")
	fmt.Println()
	fmt.Println("    -baseline string     Baseline run report (JSON)")
	fmt.Println("    -current string      Current run report (JSON)")
	fmt.Println("    -format string       console, json (default console)")
	fmt.Println("    -o string            Output file (default stdout)")
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("SCORE"))
	fmt.Println()
	fmt.Println("  mcpconform score report.json [-json]")
	fmt.Println()

	fmt.Println(ui.SectionStyle.Render("CHECKS"))
	fmt.Println()
	fmt.Println("  mcpconform checks [-category core,tools] [-level MUST]")
	fmt.Println()
}
