package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/parxive/parx/internal/audit"
	"github.com/parxive/parx/internal/encode"
	"github.com/parxive/parx/internal/manifest"
	"github.com/parxive/parx/internal/observability"
	"github.com/parxive/parx/internal/parxerr"
	"github.com/parxive/parx/internal/repair"
	"github.com/parxive/parx/internal/validation"
	"github.com/parxive/parx/internal/verify"
	"github.com/parxive/parx/internal/volume"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(64)
	}

	logger := observability.NewLogger("parx", "dev", os.Stderr)
	metrics := observability.NewMetrics()
	serveMetrics(logger, metrics, ".parx")

	command := os.Args[1]
	metrics.RecordRunStart()
	startedAt := time.Now()

	var err error
	switch command {
	case "create":
		err = runCreate(os.Args[2:], logger, metrics)
	case "verify":
		err = runVerify(os.Args[2:], logger, metrics)
	case "audit":
		err = runAudit(os.Args[2:], metrics)
	case "repair":
		err = runRepair(os.Args[2:], logger, metrics)
	case "quickcheck":
		err = runQuickcheck(os.Args[2:])
	case "paritycheck":
		err = runParitycheck(os.Args[2:], metrics)
	case "recover-manifest":
		err = runRecoverManifest(os.Args[2:])
	default:
		usage()
		os.Exit(64)
	}
	metrics.RecordRunComplete(command, err == nil, time.Since(startedAt).Seconds())

	if err != nil {
		fmt.Fprintf(os.Stderr, "parx: %v\n", err)
		if kind, ok := parxerr.KindOf(err); ok {
			os.Exit(parxerr.ExitCode(kind))
		}
		os.Exit(70)
	}
}

// serveMetrics starts a background /metrics and /healthz HTTP server when
// PARX_METRICS_ADDR is set, for callers that run parx as a supervised batch
// job and want to scrape it mid-run. Health checks default to the
// conventional ".parx" parity directory; a run using -parity-dir to point
// elsewhere won't be reflected here, since the subcommand's own flag set
// hasn't parsed yet at this point in startup.
func serveMetrics(logger *observability.Logger, metrics *observability.Metrics, defaultParityDir string) {
	addr := os.Getenv("PARX_METRICS_ADDR")
	if addr == "" {
		return
	}
	health := observability.NewHealthChecker("dev")
	health.RegisterCheck("parity_dir_writable", observability.ParityDirWritableCheck(defaultParityDir))
	health.RegisterCheck("manifest_readable", observability.ManifestReadableCheck(defaultParityDir))
	health.RegisterCheck("disk_space", observability.DiskSpaceCheck(defaultParityDir, 100*1024*1024))

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", health.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("metrics server stopped: " + err.Error())
		}
	}()
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: parx <create|verify|audit|repair|quickcheck|paritycheck|recover-manifest> [options]")
}

func runCreate(args []string, logger *observability.Logger, metrics *observability.Metrics) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	output := fs.String("output", ".parx", "parity output directory")
	chunkSize := fs.Int("chunk-size", 1<<20, "chunk size in bytes")
	stripeK := fs.Int("stripe-k", 8, "data shards per stripe")
	parityPct := fs.Int("parity-pct", 20, "parity percentage (0-100)")
	volumes := fs.Int("volumes", 1, "number of parity volume files")
	outerGroup := fs.Int("outer-group", 0, "outer parity group size (recorded in the manifest; outer parity is per-stripe)")
	outerParity := fs.Int("outer-parity", 0, "outer parity shard count")
	ordering := fs.String("ordering", manifest.OrderingSequential, "chunk ordering: sequential|interleaved")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return parxerr.New(parxerr.KindBadConfig, "cmd.create", fmt.Errorf("usage: parx create [options] <root>"))
	}
	root := fs.Arg(0)
	if err := validation.ValidateDirPath(root, true); err != nil {
		return parxerr.New(parxerr.KindBadInput, "cmd.create", err)
	}
	if err := validation.ValidateRangeInt(*parityPct, 0, 100); err != nil {
		return parxerr.New(parxerr.KindBadConfig, "cmd.create", err)
	}

	cfg := encode.Config{
		ChunkSize:   *chunkSize,
		StripeK:     *stripeK,
		ParityPct:   *parityPct,
		Volumes:     *volumes,
		OuterGroup:  *outerGroup,
		OuterParity: *outerParity,
		Ordering:    *ordering,
	}

	res, err := encode.Run(root, *output, cfg, logger, metrics)
	if err != nil {
		return err
	}
	fmt.Printf("Encoded %d files, %d chunks, merkle=%x\n", len(res.Manifest.Files), res.Manifest.TotalChunks, res.Manifest.MerkleRoot)
	return nil
}

func runVerify(args []string, logger *observability.Logger, metrics *observability.Metrics) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	parityDir := fs.String("parity-dir", ".parx", "parity output directory")
	jsonOut := fs.Bool("json", false, "print JSON report instead of OK/BAD")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return parxerr.New(parxerr.KindBadConfig, "cmd.verify", fmt.Errorf("usage: parx verify [options] <root>"))
	}
	root := fs.Arg(0)

	mf, err := manifest.Load(manifestPath(*parityDir))
	if err != nil {
		return err
	}
	report, err := verify.Run(mf, root, logger, metrics)
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(report)
	}
	if report.ChunksBad == 0 && report.MerkleOK {
		fmt.Println("OK")
		return nil
	}
	fmt.Println("BAD")
	return parxerr.New(parxerr.KindIntegrity, "cmd.verify", fmt.Errorf("%d bad chunks, merkle_ok=%v", report.ChunksBad, report.MerkleOK))
}

func runAudit(args []string, metrics *observability.Metrics) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	parityDir := fs.String("parity-dir", ".parx", "parity output directory")
	root := fs.String("root", "", "source root, required to judge repairability")
	jsonOut := fs.Bool("json", false, "print JSON report")
	fs.Parse(args)

	report, err := audit.Run(*parityDir, metrics)
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(report)
	}
	fmt.Printf("Volumes: %d, stripes with parity: %d, shard bytes: %s\n", report.Volumes, len(report.StripeParityCounts), report.HumanBytes())
	for _, vs := range report.VolumeStatuses {
		if vs.Status == audit.VolumeOK {
			fmt.Printf("  %s: ok (%d stripes)\n", vs.Path, vs.Stripes)
		} else {
			fmt.Printf("  %s: %s\n", vs.Path, vs.Status)
		}
	}

	if *root != "" {
		mf, err := manifest.Load(manifestPath(*parityDir))
		if err != nil {
			return err
		}
		res, err := audit.CheckRepairable(mf, *root)
		if err != nil {
			return err
		}
		if res.Repairable {
			fmt.Println("Repairable: YES")
		} else {
			fmt.Printf("Repairable: NO (stripe %d has %d damaged chunks, parity covers %d)\n", res.WorstStripe, res.WorstDamage, res.InnerParityM)
		}
	}
	return nil
}

func runRepair(args []string, logger *observability.Logger, metrics *observability.Metrics) error {
	fs := flag.NewFlagSet("repair", flag.ExitOnError)
	parityDir := fs.String("parity-dir", ".parx", "parity output directory")
	jsonOut := fs.Bool("json", false, "print JSON report")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return parxerr.New(parxerr.KindBadConfig, "cmd.repair", fmt.Errorf("usage: parx repair [options] <root>"))
	}
	root := fs.Arg(0)

	mf, err := manifest.Load(manifestPath(*parityDir))
	if err != nil {
		return err
	}
	report, err := repair.Run(mf, root, *parityDir, logger, metrics)
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(report)
	}
	return nil
}

func runQuickcheck(args []string) error {
	fs := flag.NewFlagSet("quickcheck", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		return parxerr.New(parxerr.KindBadConfig, "cmd.quickcheck", fmt.Errorf("usage: parx quickcheck <volume.parxv>"))
	}
	insp, err := audit.InspectVolume(fs.Arg(0))
	if err != nil {
		return err
	}
	return printJSON(insp)
}

func runParitycheck(args []string, metrics *observability.Metrics) error {
	fs := flag.NewFlagSet("paritycheck", flag.ExitOnError)
	parityDir := fs.String("parity-dir", ".parx", "parity output directory")
	fs.Parse(args)
	report, err := audit.RunDeep(*parityDir, metrics)
	if err != nil {
		return err
	}
	return printJSON(report)
}

// runRecoverManifest reads volume 0's manifest-backup TLV and writes
// manifest.json back out, for when manifest.json itself has been lost but
// the parity directory survives.
func runRecoverManifest(args []string) error {
	fs := flag.NewFlagSet("recover-manifest", flag.ExitOnError)
	parityDir := fs.String("parity-dir", ".parx", "parity output directory")
	fs.Parse(args)

	r, err := volume.Open(filepath.Join(*parityDir, volume.Name(0)))
	if err != nil {
		return err
	}
	defer r.Close()

	data, ok, err := r.ReadManifestBackup()
	if err != nil {
		return err
	}
	if !ok {
		return parxerr.New(parxerr.KindFormat, "cmd.recover-manifest", fmt.Errorf("volume 0 has no manifest backup"))
	}

	if err := os.WriteFile(manifestPath(*parityDir), data, 0o644); err != nil {
		return parxerr.New(parxerr.KindIO, "cmd.recover-manifest", err)
	}
	fmt.Printf("Recovered %s\n", manifestPath(*parityDir))
	return nil
}

func manifestPath(parityDir string) string {
	return filepath.Join(parityDir, "manifest.json")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
