package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/daniellavrushin/pqc-tracer/archive"
	"github.com/daniellavrushin/pqc-tracer/config"
	pqhttp "github.com/daniellavrushin/pqc-tracer/http"
	"github.com/daniellavrushin/pqc-tracer/http/handler"
	"github.com/daniellavrushin/pqc-tracer/log"
	"github.com/daniellavrushin/pqc-tracer/metrics"
	"github.com/daniellavrushin/pqc-tracer/probe"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfg         = config.NewConfig()
	verboseFlag string
	showVersion bool
	jsonOutput  bool
	Version     = "dev"
	Commit      = "none"
	Date        = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pqc-tracer [url...]",
	Short: "Report the TLS key-exchange group an HTTPS server negotiates",
	Long: `pqc-tracer performs one HTTPS request per URL and reports the negotiated
key-exchange group (classical, post-quantum or hybrid) and cipher suite, taken
from the TLS stack or, when it is silent, from the captured handshake trace.`,
	Args:              cobra.ArbitraryArgs,
	PersistentPreRunE: setup,
	RunE:              runProbe,
	SilenceUsage:      true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the probe API and log stream over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	cfg.BindFlags(rootCmd)

	rootCmd.PersistentFlags().StringVar(&verboseFlag, "verbose", "info", "Set verbosity level (debug, trace, info, error, silent)")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup runs before every command: the config file first, so its logging
// section takes effect, then logging sinks, then validation.
func setup(cmd *cobra.Command, _ []string) error {
	if showVersion {
		return nil
	}

	handler.Version, handler.Commit, handler.Date = Version, Commit, Date

	cfg.ApplyLogLevel(verboseFlag)
	if err := loadConfig(cmd); err != nil {
		return err
	}

	if err := initLogging(&cfg, cmd == serveCmd); err != nil {
		return fmt.Errorf("logging initialization failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return log.Errorf("invalid configuration: %w", err)
	}

	printConfigDefaults(cmd)
	log.Debugf("Effective configuration: %s", cfg.LogString())
	return nil
}

// loadConfig reads --config and re-applies every flag given on the command
// line, so flags take precedence over the file.
func loadConfig(cmd *cobra.Command) error {
	if cfg.ConfigPath == "" {
		return nil
	}

	type override struct {
		flag   *pflag.Flag
		value  string
		values []string
	}
	var changed []override
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			changed = append(changed, override{flag: f, values: sv.GetSlice()})
			return
		}
		changed = append(changed, override{flag: f, value: f.Value.String()})
	})

	path := cfg.ConfigPath
	if err := cfg.LoadWithMigration(path); err != nil {
		return err
	}
	cfg.ConfigPath = path

	for _, o := range changed {
		var err error
		if sv, ok := o.flag.Value.(pflag.SliceValue); ok {
			err = sv.Replace(o.values)
		} else {
			err = o.flag.Value.Set(o.value)
		}
		if err != nil {
			return log.Errorf("failed to re-apply --%s: %v", o.flag.Name, err)
		}
	}

	if cmd.Flags().Changed("verbose") {
		cfg.ApplyLogLevel(verboseFlag)
	}
	log.SetLevel(cfg.System.Logging.Level)
	log.SetInstaflush(cfg.System.Logging.Instaflush)
	log.Tracef("Configuration loaded from %s", path)
	return nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Printf("pqc-tracer version: %s (%s) %s\n", Version, Commit, Date)
		return nil
	}

	urls := args
	if len(urls) == 0 {
		urls = cfg.Probe.URLs
	}
	if len(urls) == 0 {
		urls = []string{config.DefaultURL}
	}
	for _, u := range urls {
		if err := config.ValidateURL(u); err != nil {
			return err
		}
	}

	prober, err := probe.New(&cfg)
	if err != nil {
		return log.Errorf("failed to create prober: %w", err)
	}
	defer prober.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results := make([]*probe.Result, 0, len(urls))
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		res := prober.Execute(ctx, probe.Request{URL: u})
		results = append(results, res)
		if !jsonOutput {
			if len(urls) > 1 {
				fmt.Fprintf(os.Stdout, "==> %s\n", res.URL)
			}
			printResult(os.Stdout, res, cfg.Probe.PreviewChars)
		}
	}

	if jsonOutput {
		if err := printJSON(os.Stdout, results); err != nil {
			return err
		}
	}

	log.CloseErrorFile()
	log.Flush()
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	m := metrics.GetMetricsCollector()
	m.RecordEvent("info", "pqc-tracer starting up")

	var (
		opts   []probe.Option
		traces handler.TraceStore
	)
	if cfg.Capture.ArchiveDir != "" {
		a, err := archive.Open(cfg.Capture.ArchiveDir)
		if err != nil {
			return err
		}
		defer a.Close()
		opts = append(opts, probe.WithArchive(a))
		traces = a
	}

	prober, err := probe.New(&cfg, opts...)
	if err != nil {
		return log.Errorf("failed to create prober: %w", err)
	}

	httpServer, err := pqhttp.StartServer(&cfg, prober, traces)
	if err != nil {
		m.RecordEvent("error", fmt.Sprintf("Failed to start web server: %v", err))
		return log.Errorf("failed to start web server: %w", err)
	}
	if httpServer == nil {
		return log.Errorf("serve requires --web-port greater than 0")
	}

	log.Infof("pqc-tracer is serving. Press Ctrl+C to stop")
	m.RecordEvent("info", "pqc-tracer is fully operational")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.Infof("Received signal: %v, shutting down gracefully", sig)
	m.RecordEvent("info", fmt.Sprintf("Shutdown initiated by signal: %v", sig))

	return gracefulShutdown(httpServer, m)
}

func gracefulShutdown(httpServer *http.Server, m *metrics.MetricsCollector) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Infof("Shutting down WebSocket connections...")
	pqhttp.Shutdown()

	log.Infof("Shutting down HTTP server...")
	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
		m.RecordEvent("warning", "pqc-tracer shutdown with errors")
	} else {
		log.Infof("pqc-tracer stopped successfully")
		m.RecordEvent("info", "pqc-tracer shutdown complete")
	}

	log.CloseErrorFile()
	log.Flush()
	return err
}

func initLogging(cfg *config.Config, stream bool) error {
	var w io.Writer = log.OrigStderr()
	if stream {
		w = io.MultiWriter(w, pqhttp.LogWriter())
	}
	log.Init(w, cfg.System.Logging.Level, cfg.System.Logging.Instaflush)

	if cfg.System.Logging.Syslog {
		if err := log.EnableSyslog("pqc-tracer"); err != nil {
			return log.Errorf("failed to enable syslog: %v", err)
		}
		log.Infof("Syslog enabled")
	}

	if cfg.System.Logging.ErrorFile != "" {
		if err := log.InitErrorFile(cfg.System.Logging.ErrorFile,
			cfg.System.Logging.ErrorFileMaxMB, cfg.System.Logging.ErrorFileBackups); err != nil {
			log.Errorf("Failed to open error log file: %v", err)
		} else {
			log.Infof("Error logging to file: %s", cfg.System.Logging.ErrorFile)
		}
	}
	return nil
}

func printConfigDefaults(cmd *cobra.Command) {
	// inherited persistent flags are merged into Flags() once parsed
	var all []*pflag.Flag
	cmd.Flags().VisitAll(func(f *pflag.Flag) { all = append(all, f) })
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	line := ""
	for _, f := range all {
		if line != "" {
			line += " "
		}
		line += fmt.Sprintf("--%s=%s", f.Name, f.Value.String())
	}
	log.Tracef("Effective CLI flags: %s", line)
}

func printJSON(w io.Writer, results []*probe.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
