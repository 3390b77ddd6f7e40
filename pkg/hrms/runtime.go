// Package hrms embeds the high-resistance measurement system in any Go
// program: wire a Keithley 6517A (or a custom electrometer), run
// adaptive staircase sweep sessions, and collect the results.
package hrms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	visalib "github.com/jpoirier/visa"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kongfanmiao/hrms/internal/adapters/journal"
	"github.com/kongfanmiao/hrms/internal/adapters/keithley"
	"github.com/kongfanmiao/hrms/internal/adapters/observability"
	prologixconn "github.com/kongfanmiao/hrms/internal/adapters/prologix"
	"github.com/kongfanmiao/hrms/internal/adapters/recorder"
	visaconn "github.com/kongfanmiao/hrms/internal/adapters/visa"
	"github.com/kongfanmiao/hrms/internal/app/config"
	"github.com/kongfanmiao/hrms/internal/domain"
	"github.com/kongfanmiao/hrms/internal/ports"
	"github.com/kongfanmiao/hrms/internal/sweep"
)

// Option customizes the dependencies used by Runtime.
type Option func(*overrides)

type overrides struct {
	instrument    ports.Electrometer
	recorders     []ports.Recorder
	observability ports.Observability
	autoRange     bool
}

// WithElectrometer injects a custom instrument implementation
// (simulators, other electrometer models, remote bridges).
func WithElectrometer(instr ports.Electrometer) Option {
	return func(o *overrides) { o.instrument = instr }
}

// WithRecorder adds a recorder alongside the defaults. May be given
// multiple times.
func WithRecorder(r ports.Recorder) Option {
	return func(o *overrides) { o.recorders = append(o.recorders, r) }
}

// WithObservability plugs in a custom logging and metrics backend.
func WithObservability(obs ports.Observability) Option {
	return func(o *overrides) { o.observability = obs }
}

// WithAutoRange leaves range selection to the instrument. The adaptive
// selector is then bypassed entirely.
func WithAutoRange() Option {
	return func(o *overrides) { o.autoRange = true }
}

type closer interface{ Close() error }

// Runtime wires the transport, instrument driver, sweep core, and
// recorder stack together and exposes simple lifecycle hooks.
type Runtime struct {
	cfg       *config.Config
	obs       ports.Observability
	instr     ports.Electrometer
	recorders []ports.Recorder
	autoRange bool

	conn       closer
	db         *sql.DB
	journal    *journal.SweepJournal
	logger     *zap.Logger
	metricsSrv *http.Server
}

// New bootstraps the default adapters: a VISA or Prologix transport to
// the 6517A, CSV and journal recorders (plus Postgres when configured),
// and zap/Prometheus observability. Options override any of them.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var o overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	r := &Runtime{cfg: cfg, autoRange: o.autoRange}
	r.cfg.Sample.FilePath = cfg.Data.Dir

	r.obs = o.observability
	if r.obs == nil {
		r.logger = observability.NewLogger(cfg.Log.File, cfg.Log.Debug)
		r.obs = observability.NewPromObs(r.logger, prometheus.DefaultRegisterer)
	}

	if o.instrument != nil {
		r.instr = o.instrument
	} else if err := r.openInstrument(); err != nil {
		r.Shutdown(context.Background())
		return nil, err
	}

	if err := r.buildRecorders(o.recorders); err != nil {
		r.Shutdown(context.Background())
		return nil, err
	}

	return r, nil
}

func (r *Runtime) openInstrument() error {
	ic := r.cfg.Instrument
	switch ic.Transport {
	case config.TransportVISA:
		rm, status := visalib.OpenDefaultRM()
		if status != visalib.SUCCESS {
			return fmt.Errorf("open VISA resource manager: status %d", status)
		}
		conn := &visaconn.Conn{
			ResourceName:    ic.Resource,
			ResourceManager: &rm,
			Timeout:         ic.Timeout,
		}
		if err := conn.Open(); err != nil {
			return err
		}
		conn.SetErrorQuery("SYSTem:ERRor?")
		r.conn = conn
		return r.configure(keithley.New(conn))
	case config.TransportPrologix:
		conn, err := prologixconn.Open(prologixconn.Config{
			SerialPort:  ic.SerialPort,
			BaudRate:    ic.BaudRate,
			ReadTimeout: ic.Timeout,
			WriteDelay:  ic.WriteDelay,
			PrimaryAddr: ic.GPIBAddress,
		})
		if err != nil {
			return err
		}
		r.conn = conn
		return r.configure(keithley.New(conn))
	default:
		return fmt.Errorf("unknown transport %q", ic.Transport)
	}
}

func (r *Runtime) configure(dev *keithley.Device6517A) error {
	if err := dev.Configure(r.cfg.Sweep.MaxVoltage); err != nil {
		return fmt.Errorf("configure 6517A: %w", err)
	}
	r.instr = dev
	return nil
}

func (r *Runtime) buildRecorders(extra []ports.Recorder) error {
	r.recorders = append(r.recorders, recorder.NewCSVRecorder(r.cfg.Data.Dir))

	j, err := journal.Open(r.cfg.Journal.Dir)
	if err != nil {
		return fmt.Errorf("open sweep journal: %w", err)
	}
	r.journal = j
	r.recorders = append(r.recorders, j)

	if r.cfg.Postgres.ConnString != "" {
		db, err := sql.Open("postgres", r.cfg.Postgres.ConnString)
		if err != nil {
			return err
		}
		r.db = db
		r.recorders = append(r.recorders,
			recorder.NewPostgresRecorder(db, r.cfg.Postgres.SamplesTable, r.cfg.Postgres.SessionsTable))
	}

	r.recorders = append(r.recorders, extra...)
	return nil
}

// Journal exposes the sweep journal for recovery at startup; nil when
// observability-only options replaced the default recorder stack.
func (r *Runtime) Journal() *journal.SweepJournal { return r.journal }

// Run starts the metrics endpoint, executes the configured session, and
// shuts the observability stack down again. The context cancels the
// session cooperatively between readings.
func (r *Runtime) Run(ctx context.Context) (*domain.SessionResult, error) {
	r.startMetrics()
	defer r.stopMetrics()

	session := r.buildSession()
	result, err := session.Run(ctx)
	if err != nil && sweep.IsCancellation(err) {
		r.obs.LogInfo("session_cancelled")
	}
	return result, err
}

func (r *Runtime) buildSession() *sweep.Session {
	params := r.cfg.Sweep
	selector := sweep.NewRangeSelector(r.cfg.RangeConfig())
	sampler := sweep.NewStepSampler(r.instr, params.PointsPerStep, params.StepTime)
	driver := sweep.NewDriver(r.instr, sampler, selector, params.PointsPerStep, r.autoRange, r.obs)
	return sweep.NewSession(r.instr, driver, sampler, params, &r.cfg.Sample,
		r.cfg.Experiment, r.obs, r.recorders...)
}

// Shutdown closes the transport, the journal, and the database pool.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	r.stopMetrics()

	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.logger != nil {
		_ = r.logger.Sync()
	}
	return errors.Join(errs...)
}

func (r *Runtime) startMetrics() {
	if r.cfg.Metrics.Addr == "" || r.metricsSrv != nil {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{
		Addr:    r.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics_server_exited", err)
		}
	}()
}

func (r *Runtime) stopMetrics() {
	if r.metricsSrv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = r.metricsSrv.Shutdown(shutdownCtx)
	r.metricsSrv = nil
}
