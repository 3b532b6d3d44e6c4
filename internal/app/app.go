package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/lcalzada-xor/voipmon/internal/adapters/reporting"
	"github.com/lcalzada-xor/voipmon/internal/adapters/sniffer"
	"github.com/lcalzada-xor/voipmon/internal/adapters/storage"
	"github.com/lcalzada-xor/voipmon/internal/adapters/web"
	"github.com/lcalzada-xor/voipmon/internal/config"
	"github.com/lcalzada-xor/voipmon/internal/core/domain"
	"github.com/lcalzada-xor/voipmon/internal/core/ports"
	"github.com/lcalzada-xor/voipmon/internal/core/services/anomaly"
	grpcserver "github.com/lcalzada-xor/voipmon/internal/core/services/grpc"
	"github.com/lcalzada-xor/voipmon/internal/core/services/monitor"
	"github.com/lcalzada-xor/voipmon/internal/core/services/patterns"
	"github.com/lcalzada-xor/voipmon/internal/core/services/persistence"
	"github.com/lcalzada-xor/voipmon/internal/core/services/tracker"
	"github.com/lcalzada-xor/voipmon/internal/mock"
	"github.com/lcalzada-xor/voipmon/internal/telemetry"
)

// Application holds the core components of the application and drives the
// selected run mode.
type Application struct {
	Config             *config.Config
	Service            *monitor.Service
	Store              *storage.SQLiteAdapter
	PersistenceManager *persistence.PersistenceManager
	Source             ports.FrameSource
	WebServer          *web.Server
	Health             *grpcserver.HealthServer

	// Out receives the console report tables.
	Out io.Writer

	pcapOut *os.File
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config: cfg,
		Out:    os.Stdout,
	}

	if err := app.bootstrap(); err != nil {
		app.closeResources()
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}

	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	// 1. Foundation & Infrastructure
	telemetry.InitMetrics()

	if err := app.initStorage(); err != nil {
		return err
	}
	app.PersistenceManager = persistence.NewPersistenceManager(app.Store, 64)

	// 2. Analysis core
	app.Service = monitor.NewService(MonitorOptions(app.Config), app.Store, app.PersistenceManager)
	app.loadModel()

	// 3. Acquisition
	if err := app.initSource(); err != nil {
		return err
	}

	// 4. Servers
	app.initServers()
	return nil
}

// MonitorOptions maps the configuration onto the core services.
func MonitorOptions(cfg *config.Config) monitor.Options {
	a := cfg.Analysis
	opts := monitor.DefaultOptions()
	opts.Blacklist = a.Blacklist
	opts.FloodWindow = a.FloodWindow
	opts.FloodThreshold = a.FloodThreshold
	opts.Retention = tracker.Options{
		MaxObservations: a.MaxObservations,
		SessionTTL:      a.SessionTTL,
		StreamTTL:       a.StreamTTL,
	}
	opts.Anomaly = anomaly.Config{
		Trees:         a.Trees,
		SampleSize:    a.SampleSize,
		Contamination: a.Contamination,
		Seed:          a.Seed,
		Eps:           a.Eps,
		MinSamples:    a.MinSamples,
	}
	opts.Patterns = patterns.Config{
		RapidGap:        a.RapidGap,
		RapidMinCount:   a.RapidMinCount,
		NightShare:      a.NightShare,
		NightHours:      a.NightHours,
		FanOutThreshold: a.FanOutThreshold,
	}
	return opts
}

func (app *Application) initStorage() error {
	if err := os.MkdirAll(filepath.Dir(app.Config.DBPath), 0755); err != nil {
		return fmt.Errorf("failed to create DB directory: %w", err)
	}

	store, err := storage.NewSQLiteAdapter(app.Config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}
	app.Store = store
	return nil
}

func (app *Application) loadModel() {
	err := app.Service.LoadModel(context.Background())
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrBundleNotFound):
		slog.Info("no saved model, the ensemble will be fitted from traffic")
	default:
		slog.Warn("saved model ignored", "error", err)
	}
}

func (app *Application) initSource() error {
	cfg := app.Config
	switch cfg.Mode {
	case config.ModeCapture:
		app.Source = sniffer.New(sniffer.Options{
			Interface: cfg.Interface,
			PcapPath:  cfg.PcapPath,
			QueueSize: cfg.QueueSize,
		})
	case config.ModeSimulate:
		opts := mock.SimulatorOptions{
			Generator: mock.GeneratorOptions{
				Seed:           cfg.Simulate.Seed,
				SuspiciousRate: cfg.Simulate.SuspiciousRate,
			},
			Duration:  cfg.Simulate.Duration,
			Speed:     cfg.Simulate.Speed,
			QueueSize: cfg.QueueSize,
		}
		if cfg.Simulate.PcapOut != "" {
			f, err := os.Create(cfg.Simulate.PcapOut)
			if err != nil {
				return fmt.Errorf("create pcap output: %w", err)
			}
			app.pcapOut = f
			w, err := sniffer.NewPcapWriter(f)
			if err != nil {
				return err
			}
			opts.Output = w
		}
		app.Source = mock.NewSimulator(opts)
	}
	return nil
}

func (app *Application) initServers() {
	if app.Config.Mode == config.ModeAnalyze {
		return
	}
	if app.Config.Addr != "" {
		app.WebServer = web.NewServer(web.Options{
			Addr:         app.Config.Addr,
			User:         app.Config.APIUser,
			PasswordHash: app.Config.APIPassword,
		}, app.Service)
	}
	if app.Config.GRPCPort > 0 {
		app.Health = grpcserver.NewHealthServer(app.Service)
	}
}

// Run starts the application components and manages their execution lifecycle.
func (app *Application) Run(ctx context.Context) error {
	if app.Config.Mode == config.ModeAnalyze {
		defer app.closeResources()
		return app.runAnalyze(ctx)
	}
	return app.runLive(ctx)
}

// runAnalyze imports a JSON export, builds one report and writes it out.
func (app *Application) runAnalyze(ctx context.Context) error {
	f, err := os.Open(app.Config.DataFile)
	if err != nil {
		return fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	if err := app.Service.Import(f); err != nil {
		return err
	}
	slog.Info("data loaded", "file", app.Config.DataFile, "observations", len(app.Service.GetObservations()))

	report, err := app.ReportCycle(ctx)
	if err != nil {
		return err
	}
	app.printReport(report)
	if err := app.WriteReport(report); err != nil {
		return err
	}
	_, err = app.WriteExport(report.GeneratedAt)
	return err
}

// runLive drives capture and simulate modes.
func (app *Application) runLive(ctx context.Context) error {
	slog.Info("starting voipmon", "mode", app.Config.Mode)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 1. Auxiliary Loops
	app.Service.Start(runCtx, app.Config.Analysis.CleanupInterval)
	app.PersistenceManager.Start(runCtx)

	// 2. Servers
	errChan := make(chan error, 3)
	if app.WebServer != nil {
		go app.runAlertPump(runCtx)
		go func() {
			if err := app.WebServer.Run(runCtx); err != nil {
				errChan <- fmt.Errorf("web server error: %w", err)
			}
		}()
	}
	if app.Health != nil {
		app.Health.Watch(runCtx, 5*time.Second)
		go func() {
			lis, err := net.Listen("tcp", fmt.Sprintf(":%d", app.Config.GRPCPort))
			if err != nil {
				errChan <- fmt.Errorf("grpc listen error: %w", err)
				return
			}
			slog.Info("gRPC health server listening", "port", app.Config.GRPCPort)
			if err := app.Health.Serve(runCtx, lis); err != nil {
				errChan <- fmt.Errorf("grpc server error: %w", err)
			}
		}()
	}

	// 3. Acquisition & Ingestion
	ingested := make(chan struct{})
	go func() {
		defer close(ingested)
		app.Service.RunIngestion(runCtx, app.Source.Frames())
	}()
	sourceDone := make(chan error, 1)
	go func() {
		app.setCapturing(true)
		defer app.setCapturing(false)
		sourceDone <- app.Source.Start(runCtx)
	}()

	// 4. Report Cycle
	go app.runReportLoop(runCtx)

	// 5. Optional run length
	var deadline <-chan time.Time
	if d := app.Config.Capture.Duration; d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		deadline = timer.C
	}

	slog.Info("voipmon ready, press Ctrl+C to terminate")

	var runErr error
	reported := false
	select {
	case <-ctx.Done():
		slog.Info("termination signal received")
	case <-deadline:
		slog.Info("run duration reached", "duration", app.Config.Capture.Duration)
	case runErr = <-errChan:
	case err := <-sourceDone:
		if err != nil {
			runErr = fmt.Errorf("capture error: %w", err)
			break
		}
		if ctx.Err() != nil {
			break
		}
		<-ingested
		slog.Info("capture source exhausted")
		app.finalReport()
		reported = true
		if app.WebServer != nil {
			slog.Info("dashboard still available, press Ctrl+C to terminate")
			select {
			case <-ctx.Done():
			case runErr = <-errChan:
			}
		}
	}

	cancel()
	<-ingested
	if runErr == nil && !reported {
		app.finalReport()
	}
	app.cleanup()
	return runErr
}

// runReportLoop builds a report every ReportInterval.
func (app *Application) runReportLoop(ctx context.Context) {
	ticker := time.NewTicker(app.Config.ReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.ReportCycle(ctx); err != nil {
				slog.Error("report cycle failed", "error", err)
			}
		}
	}
}

// ReportCycle fits the ensemble once enough feature rows exist and builds a
// report. Fitting is retried on every cycle until it succeeds; reports built
// before that carry no anomaly scores.
func (app *Application) ReportCycle(ctx context.Context) (domain.Report, error) {
	if !app.Service.IsTrained() {
		err := app.Service.FitFromLog(ctx)
		switch {
		case err == nil:
			slog.Info("anomaly model fitted", "rows", len(app.Service.ExtractFeatures()))
		case errors.Is(err, domain.ErrInsufficientData):
			slog.Debug("not enough traffic to fit the model yet", "error", err)
		default:
			return domain.Report{}, err
		}
	}

	report, err := app.Service.BuildReport(ctx)
	if err != nil {
		return domain.Report{}, err
	}
	if app.WebServer != nil {
		app.WebServer.BroadcastReport(report)
	}
	return report, nil
}

// WriteReport stores the report as JSON and PDF in the output directory.
func (app *Application) WriteReport(report domain.Report) error {
	dir := app.Config.OutputDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	base := filepath.Join(dir, "voip_report_"+report.GeneratedAt.Format("20060102_150405"))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(base+".json", data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	pdf, err := reporting.NewPDFExporter().ExportReport(report, app.Service.Recommendations(report), app.Service.ReportStats())
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := os.WriteFile(base+".pdf", pdf, 0644); err != nil {
		return fmt.Errorf("write report pdf: %w", err)
	}
	slog.Info("report written", "json", base+".json", "pdf", base+".pdf")
	return nil
}

// WriteExport stores the raw observation data as a JSON export that analyze
// mode can read back.
func (app *Application) WriteExport(at time.Time) (string, error) {
	dir := app.Config.OutputDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, "voip_raw_data_"+at.Format("20060102_150405")+".json")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export: %w", err)
	}
	if err := app.Service.Export(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	slog.Info("data exported", "file", path)
	return path, nil
}

// finalReport runs after acquisition stops. The run context may already be
// cancelled, so it works under its own deadline.
func (app *Application) finalReport() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	at := time.Now()
	report, err := app.ReportCycle(ctx)
	if err != nil {
		slog.Error("final report failed", "error", err)
	} else {
		at = report.GeneratedAt
		app.printReport(report)
		if err := app.WriteReport(report); err != nil {
			slog.Error("writing report failed", "error", err)
		}
	}
	if _, err := app.WriteExport(at); err != nil {
		slog.Error("writing export failed", "error", err)
	}
}

func (app *Application) printReport(report domain.Report) {
	if app.Out == nil {
		return
	}
	reporting.PrintReport(app.Out, report, app.Service.Recommendations(report))
	reporting.PrintAssessments(app.Out, app.Service.Assessments())
}

func (app *Application) runAlertPump(ctx context.Context) {
	alerts := app.Service.AlertStream()
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-alerts:
			slog.Info("alert", "src", a.SrcAddr, "category", a.Category, "reason", a.Reason)
			app.WebServer.BroadcastAlert(a)
		}
	}
}

func (app *Application) setCapturing(on bool) {
	if app.Health != nil {
		app.Health.SetCapturing(on)
	}
}

// cleanup stops acquisition, persists the model and flushes the archive.
func (app *Application) cleanup() {
	slog.Info("cleaning up resources")

	if app.Source != nil {
		app.Source.Close()
	}

	if app.Service.IsTrained() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := app.Service.SaveModel(ctx); err != nil {
			slog.Error("saving model failed", "error", err)
		}
		cancel()
	}

	select {
	case <-app.PersistenceManager.Done():
	case <-time.After(10 * time.Second):
		slog.Warn("archive flush timed out")
	}

	app.closeResources()
}

func (app *Application) closeResources() {
	if app.pcapOut != nil {
		if err := app.pcapOut.Close(); err != nil {
			slog.Error("closing pcap output failed", "error", err)
		}
		app.pcapOut = nil
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			slog.Error("closing storage failed", "error", err)
		}
		app.Store = nil
	}
}
