package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/postserve/internal/config"
	"github.com/mattjoyce/postserve/internal/dispatch"
	"github.com/mattjoyce/postserve/internal/doctor"
	"github.com/mattjoyce/postserve/internal/events"
	"github.com/mattjoyce/postserve/internal/journal"
	"github.com/mattjoyce/postserve/internal/lock"
	"github.com/mattjoyce/postserve/internal/log"
	"github.com/mattjoyce/postserve/internal/secrets"
	"github.com/mattjoyce/postserve/internal/server"
	"github.com/mattjoyce/postserve/internal/storage"
	"github.com/mattjoyce/postserve/internal/telemetry"
	"github.com/mattjoyce/postserve/internal/tui"
	"github.com/mattjoyce/postserve/internal/webhook"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// defaultConfigPath is used when neither --config nor POSTSERVE_CONFIG is set.
const defaultConfigPath = "postserve.yaml"

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)
	case "webhook":
		return runWebhookNoun(args)
	case "delivery":
		return runDeliveryNoun(args)
	case "start":
		return runStart(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	info := currentVersionInfo()
	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("postserve %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = readBuildSetting("vcs.revision")
	}
	if commit != "" {
		if len(commit) > 12 {
			commit = commit[:12]
		}
		info.Commit = commit
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = readBuildSetting("vcs.time")
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return strings.TrimSpace(setting.Value)
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`postserve - stub HTTP server with signed outbound webhooks

Usage:
  postserve <noun> <action> [flags]

System Commands:
  system start         Serve stubs and fire their webhooks in the foreground
  system status        Show whether an instance holds the PID lock
  system monitor       Live view of served stubs and webhook deliveries

Config Commands:
  config check         Validate syntax, signing setup, and integrity
  config hash          Print the BLAKE3 digest of the config file
  config lock          Write the digest next to the config (<config>.b3)

Webhook Commands:
  webhook sign         Sign stdin with a secret taken from the environment
  webhook verify       Check a signature against stdin

Delivery Commands:
  delivery show <id>   Show a journaled delivery and the response it received
  delivery list        List recent deliveries
  delivery prune       Delete deliveries older than a cutoff

General:
  version              Show version information
  help                 Show this help message

Use 'postserve <noun> help' for resource-specific flags.
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: postserve system <action>")
		fmt.Println("Actions: start, status, monitor")
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "start":
		return runStart(args[1:])
	case "status":
		return runSystemStatus(args[1:])
	case "monitor":
		return runSystemMonitor(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", args[0])
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: postserve config <action> [--config PATH]")
		fmt.Println("Actions: check, hash, lock")
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "hash":
		return runConfigHash(args[1:])
	case "lock":
		return runConfigLock(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}

func runWebhookNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: postserve webhook <action> --secret-env NAME [flags] < body")
		fmt.Println("Actions: sign, verify")
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "sign":
		return runWebhookSign(args[1:], os.Stdin)
	case "verify":
		return runWebhookVerify(args[1:], os.Stdin)
	default:
		fmt.Fprintf(os.Stderr, "Unknown webhook action: %s\n", args[0])
		return 1
	}
}

func runDeliveryNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: postserve delivery <action> [--config PATH]")
		fmt.Println("Actions: show <id>, list, prune")
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "show":
		return runDeliveryShow(args[1:])
	case "list":
		return runDeliveryList(args[1:])
	case "prune":
		return runDeliveryPrune(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown delivery action: %s\n", args[0])
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func configFlag(fs *flag.FlagSet) *string {
	def := os.Getenv("POSTSERVE_CONFIG")
	if def == "" {
		def = defaultConfigPath
	}
	return fs.String("config", def, "Path to configuration file")
}

// --- SYSTEM ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("postserve starting", "version", version, "config", cfg.SourcePath)

	pidLock, err := lock.Acquire(cfg.Service.LockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", cfg.Service.LockPath, "error", err)
		return 1
	}
	defer pidLock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		shutdown, err := telemetry.InitTracer(cfg.Service.Name, os.Stderr, log.WithComponent("telemetry"))
		if err != nil {
			logger.Error("failed to initialize tracing", "error", err)
			return 1
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = shutdown(sctx)
		}()
	}

	resolve, err := secrets.FromConfig(ctx, cfg.Secrets, nil)
	if err != nil {
		logger.Error("failed to load secrets", "error", err)
		return 1
	}

	chain, err := buildChain(cfg.Transformers, resolve)
	if err != nil {
		logger.Error("failed to build transformer chain", "error", err)
		return 1
	}

	db, err := storage.OpenSQLite(ctx, cfg.Journal.Path)
	if err != nil {
		logger.Error("failed to open journal", "path", cfg.Journal.Path, "error", err)
		return 1
	}
	defer db.Close()
	store := journal.NewStore(db)
	go store.RunPruner(ctx, cfg.Journal.Retention, cfg.Journal.PruneInterval, log.WithComponent("journal"))

	hub := events.NewHub(256)
	disp := dispatch.New(chain, store, hub, cfg.Dispatch)
	srv := server.New(cfg.Server, cfg.Stubs, disp, store, hub, log.WithComponent("server"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	logger.Info("postserve running (press Ctrl+C to stop)", "transformers", cfg.Transformers)
	code := serveUntilSignal(ctx, srv, disp, sigCh, logger)
	logger.Info("postserve stopped")
	return code
}

type stubServer interface {
	Start(ctx context.Context) error
}

type deliveryDrainer interface {
	Wait()
}

// serveUntilSignal runs srv until a signal arrives or it fails. The server is
// fully shut down, in-flight stub requests included, before the dispatcher is
// drained, so every webhook those requests fire is journaled.
func serveUntilSignal(ctx context.Context, srv stubServer, disp deliveryDrainer, sigCh <-chan os.Signal, logger *slog.Logger) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Start(ctx)
	}()

	code := 0
	var err error
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		err = <-done
	case err = <-done:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server failed", "error", err)
		code = 1
	}

	disp.Wait()
	return code
}

// buildChain maps configured transformer names to transformers, in order.
func buildChain(names []string, resolve secrets.Resolver) (*webhook.Chain, error) {
	transformers := make([]webhook.Transformer, 0, len(names))
	for _, name := range names {
		switch name {
		case config.TransformerBodySignature:
			transformers = append(transformers, webhook.NewBodySignature(resolve))
		case config.TransformerBodyLength:
			transformers = append(transformers, webhook.BodyLength{})
		default:
			return nil, fmt.Errorf("unknown transformer %q", name)
		}
	}
	return webhook.NewChain(transformers...), nil
}

func runSystemStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	pid, held, err := lock.Holder(cfg.Service.LockPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read lock: %v\n", err)
		return 1
	}
	if !held {
		fmt.Println("postserve is not running")
		return 1
	}
	fmt.Printf("postserve is running (pid %d, listen %s)\n", pid, cfg.Server.Listen)
	return 0
}

func runSystemMonitor(args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "Base URL of the running postserve")
	token := fs.String("token", os.Getenv("POSTSERVE_ADMIN_TOKEN"), "Admin bearer token (needs events:ro)")
	fs.Usage = printSystemMonitorHelp
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	p := tea.NewProgram(tui.NewMonitor(*baseURL, *token))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func printSystemMonitorHelp() {
	fmt.Println("Usage: postserve system monitor [--url URL] [--token TOKEN]")
	fmt.Println()
	fmt.Println("Live view of stub requests and webhook deliveries, fed by /__admin/events.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --url URL        Base URL of the running postserve (default: http://127.0.0.1:8080)")
	fmt.Println("  --token TOKEN    Admin bearer token (or POSTSERVE_ADMIN_TOKEN env var)")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
	fmt.Println("  ↑/↓, k/j         Scroll deliveries")
}

// --- CONFIG ---

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := configFlag(fs)
	expected := fs.String("hash", "", "Expected BLAKE3 digest of the config file")
	offline := fs.Bool("offline", false, "Skip resolving signing secrets")
	jsonOut := fs.Bool("json", false, "Output the report as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if *expected != "" {
		if err := config.VerifyFileHash(*configPath, *expected); err != nil {
			fmt.Fprintf(os.Stderr, "Integrity check failed: %v\n", err)
			return 1
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		return 1
	}

	var resolve secrets.Resolver
	if !*offline {
		resolve, err = secrets.FromConfig(context.Background(), cfg.Secrets, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Secrets not checked: %v\n", err)
		}
	}

	result := doctor.New(cfg, resolve).Validate()
	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render report: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		hooks := 0
		for _, s := range cfg.Stubs {
			hooks += len(s.Webhooks)
		}
		fmt.Printf("%d stubs, %d webhooks, transformers: %s\n",
			len(cfg.Stubs), hooks, strings.Join(cfg.Transformers, ", "))
		fmt.Print(doctor.FormatHuman(result))
	}
	if !result.Valid {
		return 1
	}
	return 0
}

func runConfigHash(args []string) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	configPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	hash, err := config.ComputeBlake3Hash(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Hash failed: %v\n", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	configPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	// Refuse to authorize a config that would not load.
	data, err := os.ReadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Read failed: %v\n", err)
		return 1
	}
	if _, err := config.Parse(data); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		return 1
	}

	hash, err := config.WriteChecksum(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lock failed: %v\n", err)
		return 1
	}
	fmt.Printf("Locked %s (%s)\n", *configPath+config.ChecksumSuffix, hash)
	return 0
}

// --- WEBHOOK ---

func runWebhookSign(args []string, stdin io.Reader) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	secretEnv := fs.String("secret-env", "", "Environment variable holding the signing secret")
	header := fs.String("header", "", "Print as '<header>: <signature>' instead of the bare digest")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	secret, body, ok := readSecretAndBody(*secretEnv, stdin)
	if !ok {
		return 1
	}

	sig, err := webhook.Sign(secret, body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sign failed: %v\n", err)
		return 1
	}
	if *header != "" {
		fmt.Printf("%s: %s\n", *header, sig)
		return 0
	}
	fmt.Println(sig)
	return 0
}

func runWebhookVerify(args []string, stdin io.Reader) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	secretEnv := fs.String("secret-env", "", "Environment variable holding the signing secret")
	signature := fs.String("signature", "", "Signature to check (hex, optional sha256= prefix)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if *signature == "" {
		fmt.Fprintln(os.Stderr, "Usage: postserve webhook verify --secret-env NAME --signature HEX < body")
		return 1
	}

	secret, body, ok := readSecretAndBody(*secretEnv, stdin)
	if !ok {
		return 1
	}

	if err := webhook.VerifySignature(body, *signature, secret); err != nil {
		fmt.Fprintf(os.Stderr, "Signature invalid: %v\n", err)
		return 1
	}
	fmt.Println("Signature valid")
	return 0
}

func readSecretAndBody(secretEnv string, stdin io.Reader) (string, string, bool) {
	if secretEnv == "" {
		fmt.Fprintln(os.Stderr, "--secret-env is required")
		return "", "", false
	}
	secret, ok := secrets.Env()(secretEnv)
	if !ok {
		fmt.Fprintf(os.Stderr, "Environment variable %s is not set\n", secretEnv)
		return "", "", false
	}
	body, err := io.ReadAll(stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read body: %v\n", err)
		return "", "", false
	}
	return secret, string(body), true
}

// --- DELIVERY ---

func openJournal(ctx context.Context, configPath string) (*journal.Store, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := storage.OpenSQLite(ctx, cfg.Journal.Path)
	if err != nil {
		return nil, nil, err
	}
	return journal.NewStore(db), func() { _ = db.Close() }, nil
}

type deliveryOutput struct {
	ID           string                `json:"id"`
	ServeEventID string                `json:"serve_event_id"`
	Stub         string                `json:"stub,omitempty"`
	Status       journal.Status        `json:"status"`
	Request      string                `json:"request"`
	Headers      webhook.Header        `json:"headers"`
	HTTPStatus   int                   `json:"http_status,omitempty"`
	Response     *webhook.ResponseView `json:"response,omitempty"`
	Error        string                `json:"error,omitempty"`
	CompletedAt  time.Time             `json:"completed_at"`
}

func runDeliveryShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: postserve delivery show <id> [--config PATH]")
		return 1
	}

	ctx := context.Background()
	store, closeFn, err := openJournal(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		return 1
	}
	defer closeFn()

	d, err := store.Get(ctx, fs.Arg(0))
	if errors.Is(err, journal.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Delivery %s not found\n", fs.Arg(0))
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read delivery: %v\n", err)
		return 1
	}

	out := deliveryOutput{
		ID:           d.ID,
		ServeEventID: d.ServeEventID,
		Stub:         d.Stub,
		Status:       d.Status,
		Request:      d.Request.String(),
		Headers:      d.Request.Header(),
		Error:        d.Error,
		CompletedAt:  d.CompletedAt,
	}
	if view, ok := d.ResponseView(); ok {
		out.HTTPStatus = d.Response.Status
		out.Response = &view
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render delivery: %v\n", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}

func runDeliveryList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := configFlag(fs)
	eventID := fs.String("event", "", "Only deliveries of this serve event")
	limit := fs.Int("limit", 20, "Maximum deliveries to list")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	ctx := context.Background()
	store, closeFn, err := openJournal(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		return 1
	}
	defer closeFn()

	list, err := store.List(ctx, journal.ListFilter{ServeEventID: *eventID, Limit: *limit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list deliveries: %v\n", err)
		return 1
	}
	for _, d := range list {
		status := "-"
		if d.Response != nil {
			status = fmt.Sprintf("%d", d.Response.Status)
		}
		fmt.Printf("%s  %-9s  %3s  %s %s\n", d.ID, d.Status, status, d.Request.Method(), d.Request.URL())
	}
	return 0
}

func runDeliveryPrune(args []string) int {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	configPath := configFlag(fs)
	olderThan := fs.Duration("older-than", 7*24*time.Hour, "Delete deliveries completed before now minus this")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	ctx := context.Background()
	store, closeFn, err := openJournal(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		return 1
	}
	defer closeFn()

	n, err := store.Prune(ctx, time.Now().Add(-*olderThan))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Prune failed: %v\n", err)
		return 1
	}
	fmt.Printf("Pruned %d deliveries\n", n)
	return 0
}
