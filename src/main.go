// Malaysia Indicator Monitor main entrypoint (mim).
//
// Two modes:
//  1. Live mode (default): fetch each selected indicator from data.gov.my / DOSM, append one JSONL
//     snapshot line per indicator, derive MoM/YoY changes, print the latest data used and save a chart.
//  2. Analyze-only mode (--analyze-only): rebuild summaries and charts from the newest snapshots in the
//     results file without touching the network.
//
// Design notes:
//   - Indicators are processed one after another; a failure is logged and the next indicator still runs.
//   - The exit status is 1 only when every selected indicator failed.
//   - Alert JSON always includes an alerts array (may be empty). Automatic naming at repo root when
//     thresholds are set but no path is given.
//   - Postgres, Parquet and S3 outputs are optional and off unless configured.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/analysis"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/monitor"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/publish"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/render"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/store"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/types"
)

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// sanitizeHost lowercases a hostname and replaces any char not alnum, dash or underscore with '-'.
func sanitizeHost(hn string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(hn) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// expandHost substitutes {host}, %HOST% and $HOST in path.
func expandHost(path, hostname string) (string, bool) {
	if hostname == "" {
		return path, false
	}
	if !strings.Contains(path, "{host}") && !strings.Contains(path, "%HOST%") && !strings.Contains(path, "$HOST") {
		return path, false
	}
	h := sanitizeHost(hostname)
	path = strings.ReplaceAll(path, "{host}", h)
	path = strings.ReplaceAll(path, "%HOST%", h)
	path = strings.ReplaceAll(path, "$HOST", h)
	return path, true
}

// s3DefaultsFromEnv reads the MIM_S3_* variables used as flag defaults.
func s3DefaultsFromEnv() publish.S3Config {
	return publish.S3Config{
		Bucket:          envOr("MIM_S3_BUCKET", ""),
		Prefix:          envOr("MIM_S3_PREFIX", "mim"),
		Region:          envOr("MIM_S3_REGION", ""),
		Endpoint:        envOr("MIM_S3_ENDPOINT", ""),
		AccessKeyID:     envOr("MIM_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: envOr("MIM_S3_SECRET_ACCESS_KEY", ""),
	}
}

// splitSnapshots returns the newest and the one-before-newest envelope per indicator.
func splitSnapshots(envs []*monitor.ResultEnvelope) (latest, previous map[string]*monitor.ResultEnvelope) {
	latest = map[string]*monitor.ResultEnvelope{}
	previous = map[string]*monitor.ResultEnvelope{}
	for _, e := range envs {
		if e == nil || e.IndicatorResult == nil {
			continue
		}
		id := e.IndicatorResult.Indicator
		if cur, ok := latest[id]; ok {
			previous[id] = cur
		}
		latest[id] = e
	}
	return latest, previous
}

func main() {
	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("[init] error loading .env file: %v\n", err)
	}

	configPath := flag.String("config", "", "Path to indicator catalogue YAML (empty = built-in defaults)")
	indicatorIDs := flag.String("indicators", "all", "Comma separated indicator ids to process (bts,ipi,lfs,wrt) or 'all'")
	outFile := flag.String("out", monitor.DefaultResultsFile, "Results JSONL file (supports {host})")
	chartsDir := flag.String("charts-dir", "charts", "Directory the PNG charts are written to (empty disables charts)")
	chartWidth := flag.Int("chart-width", 0, "Chart width in pixels (0 = per-chart default)")
	chartHeight := flag.Int("chart-height", 0, "Chart height in pixels (0 = per-chart default)")
	noFooter := flag.Bool("no-footer", false, "Do not stamp the source/retrieval footer on charts")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")
	logFile := flag.String("log-file", "", "Optional rotating log file (in addition to stderr)")
	logMaxSize := flag.Int("log-max-size", 10, "Log file rotation size in MB")
	logMaxBackups := flag.Int("log-max-backups", 3, "Rotated log files kept")
	logMaxAge := flag.Int("log-max-age", 28, "Days rotated log files are kept")
	httpTimeout := flag.Duration("http-timeout", 60*time.Second, "Per-request total timeout (including body transfer)")
	requestInterval := flag.Duration("request-interval", 500*time.Millisecond, "Minimum spacing between outbound requests (0 disables)")
	token := flag.String("token", os.Getenv("DATA_GOV_MY_TOKEN"), "Optional data.gov.my API token")
	userAgent := flag.String("user-agent", "", "Override the HTTP User-Agent")
	referenceYear := flag.Int("bts-reference-year", 0, "Newest year probed for BTS workbooks (0 = current year)")
	runTagFlag := flag.String("run-tag", "", "Run tag recorded in every snapshot (default UTC timestamp)")
	analyzeOnly := flag.Bool("analyze-only", false, "Rebuild charts and summaries from the results file without fetching")
	analysisSnapshots := flag.Int("analysis-snapshots", 10, "Max snapshots per indicator read from the results file")
	alertsJSON := flag.String("alerts-json", "", "Path to write structured alert JSON report (optional)")
	momAlert := flag.Float64("mom-alert", 0, "Alert when |MoM| change reaches this percent (0 disables)")
	yoyAlert := flag.Float64("yoy-alert", 0, "Alert when |YoY| change reaches this percent (0 disables)")
	databaseURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres URL for snapshot storage (optional)")
	migrateDB := flag.Bool("migrate", true, "Apply database migrations before storing snapshots")
	parquetDir := flag.String("parquet-dir", "", "Directory Parquet exports are written to (optional)")
	parquetCompression := flag.String("parquet-compression", "snappy", "Parquet compression (snappy|gzip|none)")
	s3Env := s3DefaultsFromEnv()
	s3Bucket := flag.String("s3-bucket", s3Env.Bucket, "S3 bucket charts and Parquet exports are uploaded to (optional)")
	s3Prefix := flag.String("s3-prefix", s3Env.Prefix, "S3 key prefix")
	s3Region := flag.String("s3-region", s3Env.Region, "S3 region")
	s3Endpoint := flag.String("s3-endpoint", s3Env.Endpoint, "S3-compatible endpoint URL (e.g. MinIO)")
	s3AccessKey := flag.String("s3-access-key-id", s3Env.AccessKeyID, "Static S3 access key id (empty = default AWS credential chain)")
	s3SecretKey := flag.String("s3-secret-access-key", s3Env.SecretAccessKey, "Static S3 secret access key")
	s3PathStyle := flag.Bool("s3-path-style", false, "Use path-style S3 addressing")
	timeout := flag.Duration("timeout", 0, "Overall run timeout (0 = none)")
	flag.Parse()

	if hn, err := os.Hostname(); err == nil {
		if p, ok := expandHost(*outFile, hn); ok {
			*outFile = p
			fmt.Printf("[init] expanded output path with hostname: %s\n", *outFile)
		}
	}

	monitor.SetLogLevel(*logLevel)
	monitor.SetLogFile(*logFile, *logMaxSize, *logMaxBackups, *logMaxAge)
	monitor.SetHTTPTimeout(*httpTimeout)

	inds, err := types.LoadCatalogue(*configPath)
	if err != nil {
		fmt.Printf("[init] load catalogue: %v\n", err)
		os.Exit(1)
	}
	inds, err = selectIndicators(inds, *indicatorIDs)
	if err != nil {
		fmt.Printf("[init] %v\n", err)
		os.Exit(1)
	}
	if *referenceYear > 0 {
		for i := range inds {
			if inds[i].Kind == types.KindBTSWorkbook {
				inds[i].ReferenceYear = *referenceYear
			}
		}
	}

	runTag := strings.TrimSpace(*runTagFlag)
	if runTag == "" {
		runTag = time.Now().UTC().Format("20060102_150405")
	}
	monitor.SetRunTag(runTag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	p := &pipeline{
		client: monitor.NewClient(monitor.ClientOptions{
			Timeout:   *httpTimeout,
			UserAgent: *userAgent,
			Token:     *token,
			Interval:  *requestInterval,
		}),
		chartsDir:   *chartsDir,
		render:      render.Options{Width: *chartWidth, Height: *chartHeight, NoFooter: *noFooter},
		parquetDir:  *parquetDir,
		compression: *parquetCompression,
		runTag:      runTag,
	}

	var db *store.Postgres
	if *databaseURL != "" {
		if *migrateDB && !*analyzeOnly {
			if err := store.Migrate(*databaseURL); err != nil {
				fmt.Printf("[init] %v\n", err)
				os.Exit(1)
			}
		}
		db, err = store.Open(ctx, *databaseURL)
		if err != nil {
			fmt.Printf("[init] %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		// analyze-only reads from the store but never writes an old snapshot back
		if !*analyzeOnly {
			p.db = db
		}
	}
	if *s3Bucket != "" {
		pub, err := publish.NewS3Publisher(ctx, publish.S3Config{
			Bucket:          *s3Bucket,
			Prefix:          *s3Prefix,
			Region:          *s3Region,
			Endpoint:        *s3Endpoint,
			AccessKeyID:     *s3AccessKey,
			SecretAccessKey: *s3SecretKey,
			PathStyle:       *s3PathStyle,
		})
		if err != nil {
			fmt.Printf("[init] %v\n", err)
			os.Exit(1)
		}
		p.s3 = pub
	}

	start := time.Now()
	var outs []outcome
	if *analyzeOnly {
		envs, err := analysis.LoadSnapshots(*outFile, monitor.SchemaVersion, "", *analysisSnapshots*len(inds))
		if err != nil && db == nil {
			fmt.Printf("[analysis] %v\n", err)
			os.Exit(1)
		}
		latest, previous := splitSnapshots(envs)
		if db != nil {
			if n := fillFromStore(ctx, db, inds, latest); n > 0 {
				monitor.Infof("[analysis] %d indicator(s) rebuilt from the database", n)
			}
		}
		p.previous = previous
		outs = p.runOffline(ctx, inds, latest)
	} else {
		envs, _ := analysis.LoadSnapshots(*outFile, monitor.SchemaVersion, "", *analysisSnapshots*len(inds))
		p.previous, _ = splitSnapshots(envs)
		if db != nil {
			fillFromStore(ctx, db, inds, p.previous)
		}
		monitor.InitResultWriter(*outFile)
		outs = p.runLive(ctx, inds)
		monitor.CloseResultWriter()
	}
	monitor.TimeTrack(start, "run "+runTag)

	th := analysis.Thresholds{MoMPct: *momAlert, YoYPct: *yoyAlert}
	rep := buildAlertReport(monitor.SchemaVersion, runTag, *analyzeOnly, outs, th)
	for _, a := range rep.Alerts {
		monitor.Warnf("[alert] %s", a)
	}
	path := *alertsJSON
	if path == "" && (th.MoMPct > 0 || th.YoYPct > 0) {
		path = deriveDefaultAlertsPath(runTag)
	}
	if path != "" {
		if err := writeAlertJSON(path, rep); err != nil {
			monitor.Errorf("[analysis] %v", err)
		}
	}

	ok := 0
	for _, o := range outs {
		if o.Err == nil {
			ok++
		}
	}
	fmt.Printf("[done] %d/%d indicators processed (run %s)\n", ok, len(outs), runTag)
	if allFailed(outs) {
		os.Exit(1)
	}
}
