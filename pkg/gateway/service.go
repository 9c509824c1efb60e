// Package gateway wires the channels, the orchestration core, and the
// status/metrics server into one runnable service.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sahayak/pkg/bus"
	"sahayak/pkg/channel"
	"sahayak/pkg/channel/telegram"
	"sahayak/pkg/channel/whatsapp"
	"sahayak/pkg/classify"
	"sahayak/pkg/config"
	"sahayak/pkg/dedup"
	"sahayak/pkg/directory"
	"sahayak/pkg/handler"
	"sahayak/pkg/metrics"
	"sahayak/pkg/onboard"
	"sahayak/pkg/orchestrator"
	"sahayak/pkg/provider"
	"sahayak/pkg/state"
)

const (
	defaultStatusHost = "0.0.0.0"
	defaultStatusPort = 18790
)

// Deps carries the handler collaborators a deployment attaches. Nil fields
// fall back to local defaults so the service always starts.
type Deps struct {
	Jobs        handler.JobFinder
	Compliance  handler.ComplianceSource
	Reports     handler.ReportSink
	Transcriber whatsapp.Transcriber
}

type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	provider provider.Client
	runner   *orchestrator.Runner
	metrics  *metrics.Metrics
	events   *bus.EventBus
	channels []channel.Adapter

	mu               sync.RWMutex
	startedAt        time.Time
	providerLastOKAt time.Time
	providerLastErr  string
	channelStates    map[string]channelState
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status           string                  `json:"status"`
	UptimeSeconds    int64                   `json:"uptime_seconds"`
	ProviderLastOKAt string                  `json:"provider_last_ok_at,omitempty"`
	ProviderLastErr  string                  `json:"provider_last_error,omitempty"`
	Channels         map[string]channelState `json:"channels"`
}

// NewService assembles the full pipeline from configuration: provider,
// state store, directory, classifier, handlers, orchestrator, and the
// enabled channel adapters.
func NewService(cfg *config.Config, deps Deps, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = slog.Default()
	}

	client, err := provider.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize provider: %w", err)
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	dir, err := directory.LoadFile(cfg.Directory.PathOrDefault())
	if err != nil {
		return nil, fmt.Errorf("load location directory: %w", err)
	}

	if deps.Jobs == nil {
		log.Warn("No job source attached, job search will return no openings")
		deps.Jobs = &handler.StaticJobFinder{}
	}
	if deps.Compliance == nil {
		log.Warn("No compliance source attached, using built-in wage notes")
		deps.Compliance = &handler.StaticComplianceSource{
			Context: "West Bengal minimum wage notifications apply; unskilled daily-rated work may not be paid below the zone A notified rate.",
		}
	}
	if deps.Reports == nil {
		deps.Reports = &handler.LogReportSink{}
	}

	model := cfg.Provider.Model
	registry, err := handler.NewRegistry(
		handler.NewEmergency(),
		handler.NewGeneral(client, model),
		handler.NewJobs(deps.Jobs, client, model),
		handler.NewLegal(deps.Compliance, client, model),
		handler.NewReporting(deps.Reports, client, model),
	)
	if err != nil {
		return nil, fmt.Errorf("build handler registry: %w", err)
	}

	classifierModel := cfg.Provider.ClassifierModel
	if classifierModel == "" {
		classifierModel = model
	}

	m := metrics.New()
	events := bus.NewEventBus()
	gate := onboard.NewGate(dir, cfg.Orchestrator.MenuRowLimitOrDefault(), log)
	executor := handler.NewExecutor(registry, time.Duration(cfg.Orchestrator.HandlerTimeoutOrDefault())*time.Second, log)
	router := orchestrator.NewRouter(store, gate, classify.NewLLMClassifier(client, classifierModel, log), executor, m, cfg.Orchestrator.HopBudgetOrDefault(), log)

	adapters, senders, err := buildChannels(cfg, deps.Transcriber, log)
	if err != nil {
		return nil, err
	}

	cache := dedup.New(cfg.Orchestrator.DedupCapacityOrDefault(), time.Duration(cfg.Orchestrator.DedupTTLOrDefault())*time.Second)
	runner := orchestrator.NewRunner(cache, store, router, orchestrator.NewDispatcher(log, senders...), events, m, log)

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		provider:      client,
		runner:        runner,
		metrics:       m,
		events:        events,
		channels:      adapters,
		channelStates: channelStates,
	}, nil
}

func newStore(cfg *config.Config) (state.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Backend)) {
	case "", "memory":
		return state.NewMemoryStore(), nil
	case "redis":
		if strings.TrimSpace(cfg.Store.Address) == "" {
			return nil, errors.New("store.address is required for the redis backend")
		}
		opts := []state.RedisOption{}
		if cfg.Store.KeyPrefix != "" {
			opts = append(opts, state.WithPrefix(cfg.Store.KeyPrefix))
		}
		if cfg.Store.TTLSeconds > 0 {
			opts = append(opts, state.WithTTL(time.Duration(cfg.Store.TTLSeconds)*time.Second))
		}
		return state.NewRedisStore(cfg.Store.Address, cfg.Store.Password, cfg.Store.DB, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}

func buildChannels(cfg *config.Config, transcriber whatsapp.Transcriber, log *slog.Logger) ([]channel.Adapter, []channel.Sender, error) {
	var adapters []channel.Adapter
	var senders []channel.Sender

	if cfg.Channels.Telegram.Enabled {
		tg, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize telegram channel: %w", err)
		}
		adapters = append(adapters, tg)
		senders = append(senders, tg)
	}

	if cfg.Channels.WhatsApp.Enabled {
		wa, err := whatsapp.NewAdapter(cfg.Channels.WhatsApp, transcriber, log)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize whatsapp channel: %w", err)
		}
		adapters = append(adapters, wa)
		senders = append(senders, wa)
	}

	if len(adapters) == 0 {
		return nil, nil, errors.New("no channel enabled in config")
	}
	return adapters, senders, nil
}

// Run starts the status server and the channel adapters and blocks until the
// context is canceled or a component fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if err := s.checkProviderHealth(ctx); err != nil {
		return err
	}

	serverErrors := make(chan error, 1)
	go s.runStatusServer(ctx, serverErrors)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = s.checkProviderHealth(ctx)
			}
		}
	}()

	errCh := make(chan error, len(s.channels))
	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})

		go func() {
			err := adapter.Run(ctx, s.runner.Accept)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	defer func() {
		s.runner.Wait()
		s.events.Close()
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-errCh:
		return err
	}
}

func (s *Service) runStatusServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultStatusHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultStatusPort
	}

	addr := host + ":" + strconv.Itoa(port)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, st := range s.channelStates {
		channels[name] = st
	}

	providerLastOK := ""
	if !s.providerLastOKAt.IsZero() {
		providerLastOK = s.providerLastOKAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:           status,
		UptimeSeconds:    uptime,
		ProviderLastOKAt: providerLastOK,
		ProviderLastErr:  s.providerLastErr,
		Channels:         channels,
	}
}

func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.channelStates) == 0 {
		return false
	}

	anyRunning := false
	for _, st := range s.channelStates {
		if st.Running {
			anyRunning = true
			break
		}
	}

	if !anyRunning {
		return false
	}

	if s.providerLastOKAt.IsZero() {
		return false
	}

	return s.providerLastErr == ""
}

func (s *Service) checkProviderHealth(ctx context.Context) error {
	if err := s.provider.Health(ctx); err != nil {
		s.mu.Lock()
		s.providerLastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("provider health check failed: %w", err)
	}

	s.mu.Lock()
	s.providerLastErr = ""
	s.providerLastOKAt = time.Now().UTC()
	s.mu.Unlock()

	return nil
}

func (s *Service) setChannelState(name string, st channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = st
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
