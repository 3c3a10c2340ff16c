package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"nvme-wipe-engine/internal/config"
	"nvme-wipe-engine/internal/device"
	"nvme-wipe-engine/internal/execute"
	"nvme-wipe-engine/internal/monitor"
	"nvme-wipe-engine/internal/record"
	"nvme-wipe-engine/internal/runner"
	"nvme-wipe-engine/internal/storage"
	"nvme-wipe-engine/internal/verify"
	"nvme-wipe-engine/internal/workflow"
)

var (
	configPath     string
	controllerPath string
	namespacePath  string
	recordsDir     string

	listSerial string
	listMethod string
	listLimit  int
)

func main() {
	// Structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	root := &cobra.Command{
		Use:           "nvmewipe",
		Short:         "Plan, execute and verify NVMe secure-erase operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("NVMEWIPE_CONFIG"), "Config file path")
	root.PersistentFlags().StringVar(&controllerPath, "controller", "", "Controller device (overrides config)")
	root.PersistentFlags().StringVar(&namespacePath, "device", "", "Namespace device (overrides config)")
	root.PersistentFlags().StringVar(&recordsDir, "records-dir", "", "Record directory (overrides config)")

	root.AddCommand(&cobra.Command{
		Use:   "wipe",
		Short: "Run the full erase workflow against the configured device",
		RunE:  runWipe,
	})

	root.AddCommand(&cobra.Command{
		Use:   "plan",
		Short: "Collect device capabilities and persist an erase plan without executing it",
		RunE:  runPlan,
	})

	root.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Sample the configured device and classify it without erasing",
		RunE:  runVerify,
	})

	root.AddCommand(&cobra.Command{
		Use:   "status [record-id]",
		Short: "Show the phase and outcome of a stored execution record",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived operations from the compliance archive",
		RunE:  runList,
	}
	listCmd.Flags().StringVar(&listSerial, "serial", "", "Filter by device serial")
	listCmd.Flags().StringVar(&listMethod, "method", "", "Filter by erase method")
	listCmd.Flags().IntVar(&listLimit, "limit", 100, "Maximum rows to return")
	root.AddCommand(listCmd)

	if err := root.Execute(); err != nil {
		if errors.Is(err, execute.ErrUserCancelled) {
			// A declined confirmation is an early clean stop, not an
			// error for reporting purposes. Still exits non-zero.
			fmt.Fprintln(os.Stderr, "operation cancelled")
		} else {
			log.Error().Err(err).Msg("run failed")
		}
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		log.Info().Msg("no config file given, using defaults")
	}

	if controllerPath != "" {
		cfg.Device.Controller = controllerPath
	}
	if namespacePath != "" {
		cfg.Device.Namespace = namespacePath
	}
	if recordsDir != "" {
		cfg.Records.Dir = recordsDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runWipe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	deps := workflow.Deps{
		Metrics: monitor.NewMetrics(),
		Tracer:  monitor.NewTracer(),
	}

	if cfg.Metrics.Enabled {
		srv := deps.Metrics.Serve(cfg.Metrics.Addr, cfg.Metrics.Path)
		defer srv.Close()
	}

	// Optional compliance archive; the engine runs without it.
	if cfg.Audit.DSN != "" {
		db, err := storage.New(ctx, cfg.Audit.DSN)
		if err != nil {
			log.Warn().Err(err).Msg("compliance archive unavailable, continuing without it")
		} else {
			defer db.Close()
			writer := storage.NewArchiveWriter(db, cfg.Audit.BufferSize)
			writer.Start()
			defer writer.Flush(cfg.Audit.FlushTimeout)
			deps.Archive = writer
		}
	}

	engine, err := workflow.New(cfg, deps)
	if err != nil {
		return err
	}

	outcome, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Erase completed: %s\n", outcome.Method)
	fmt.Printf("Verification:    %s\n", outcome.Classification)
	fmt.Printf("Record:          %s\n", outcome.RecordPath)
	return nil
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	engine, err := workflow.New(cfg, workflow.Deps{})
	if err != nil {
		return err
	}

	id, rec, err := engine.Plan(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Record:   %s\n", engine.Store().Path(id))
	fmt.Printf("Device:   %s (%s, %s)\n", rec.DevicePath, rec.DeviceInfo.Model, rec.DeviceInfo.Capacity)
	fmt.Printf("Primary:  %s  [%s]\n", rec.ExecutionPlan.RecommendedMethod, rec.ExecutionPlan.RecommendedCommand)
	if rec.ExecutionPlan.AlternativeMethod != "" {
		fmt.Printf("Fallback: %s  [%s]\n", rec.ExecutionPlan.AlternativeMethod, rec.ExecutionPlan.AlternativeCommand)
	}
	for _, w := range rec.SafetyWarnings {
		fmt.Printf("WARNING:  %s\n", w)
	}
	return nil
}

func runVerify(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	run := runner.New()
	verifier := verify.New(run, device.NewIntrospector(run))
	res := verifier.Verify(ctx, cfg.Device.Controller, cfg.Device.Namespace, nil)

	fmt.Printf("Device:         %s\n", cfg.Device.Namespace)
	fmt.Printf("Classification: %s\n", res.Classification)
	fmt.Printf("Analysis:       %s\n", res.Analysis)
	if res.DeviceAccessible {
		fmt.Printf("Sample:\n%s\n", res.Sample)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := workflow.New(cfg, workflow.Deps{})
	if err != nil {
		return err
	}

	rec, err := engine.Store().Load(args[0])
	if err != nil {
		// A record missing locally may still exist in the archive.
		if errors.Is(err, record.ErrRecordNotFound) && cfg.Audit.DSN != "" {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return statusFromArchive(ctx, cfg, args[0])
		}
		return err
	}

	fmt.Printf("Phase:    %s\n", rec.Phase)
	fmt.Printf("Device:   %s (%s, serial %s)\n", rec.DevicePath, rec.DeviceInfo.Model, rec.DeviceInfo.Serial)
	fmt.Printf("Planned:  %s\n", rec.ExecutionPlan.RecommendedMethod)
	if rec.ExecutionPlan.ActualMethod != "" {
		fmt.Printf("Executed: %s (success=%t, duration=%s)\n",
			rec.ExecutionPlan.ActualMethod, rec.ExecutionPlan.Success, rec.ExecutionPlan.Duration)
	}
	if rec.Verification != nil {
		fmt.Printf("Verified: %s (%d non-zero rows)\n",
			rec.Verification.DataAnalysis.Status, rec.Verification.DataAnalysis.NonZeroLines)
	}
	return nil
}

func statusFromArchive(ctx context.Context, cfg *config.Config, recordID string) error {
	db, err := storage.New(ctx, cfg.Audit.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	op, err := db.GetWipe(ctx, recordID)
	if err != nil {
		return err
	}

	fmt.Printf("Phase:    %s (archived)\n", op.Phase)
	fmt.Printf("Device:   %s (%s, serial %s)\n", op.DevicePath, op.Model, op.Serial)
	fmt.Printf("Executed: %s (success=%t, duration=%s)\n", op.Method, op.Success, op.Duration)
	fmt.Printf("Verified: %s\n", op.VerificationStatus)
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Audit.DSN == "" {
		return errors.New("list requires a configured audit DSN")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := storage.New(ctx, cfg.Audit.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if !db.Healthy(ctx) {
		return errors.New("compliance archive is not responding")
	}

	ops, err := db.ListWipes(ctx, storage.WipeFilter{
		Serial: listSerial,
		Method: listMethod,
		Limit:  listLimit,
	})
	if err != nil {
		return err
	}

	if len(ops) == 0 {
		fmt.Println("no archived operations match")
		return nil
	}
	for _, op := range ops {
		fmt.Println(formatWipeRow(&op))
	}
	return nil
}

// formatWipeRow renders one archived operation as a single summary line.
func formatWipeRow(op *storage.WipeOperation) string {
	status := "failed"
	if op.Success {
		status = "ok"
	}
	return fmt.Sprintf("%s  %-6s  %-16s  %-16s  %-20s  %s",
		op.CreatedAt.Format("2006-01-02 15:04:05"),
		status, op.Serial, op.Method, op.VerificationStatus, op.DevicePath)
}
