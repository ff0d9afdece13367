// Command hazardd runs the hazard-services daemon for one office session:
// recommenders feed the event store, the product cycle codes and issues
// products, and issued products go out on the dissemination topic.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/hazard-services/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hazard-services/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-services/internal/bridge"
	"github.com/couchcryptid/hazard-services/internal/config"
	"github.com/couchcryptid/hazard-services/internal/domain"
	"github.com/couchcryptid/hazard-services/internal/observability"
	"github.com/couchcryptid/hazard-services/internal/pipeline"
	"github.com/couchcryptid/hazard-services/internal/recommender"
	"github.com/couchcryptid/hazard-services/internal/vtec"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	b, err := bridge.New(bridge.Options{
		ConfigRoot:  cfg.ConfigRoot,
		DataRoot:    cfg.DataRoot,
		SiteID:      cfg.SiteID,
		User:        cfg.User,
		Workstation: cfg.Workstation,
		Mode:        cfg.Mode,
	}, logger, metrics)
	if err != nil {
		logger.Error("failed to open bridge", "error", err)
		os.Exit(1)
	}

	registry := recommender.NewRegistry()
	registry.Register(recommender.NewBurnScar())
	runner := recommender.NewRunner(registry, b.Events(), logger, metrics)
	logger.Info("recommenders registered", "names", registry.Names())

	engine := vtec.NewEngine(b.VTEC(cfg.Mode), logger, metrics)

	var dissem pipeline.Disseminator
	var writer *kafkaadapter.Writer
	if cfg.DisseminateOn {
		writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaProductTopic, logger, metrics)
		dissem = writer
		logger.Info("dissemination enabled", "topic", cfg.KafkaProductTopic)
	} else {
		logger.Info("dissemination disabled")
	}

	p := pipeline.New(pipeline.Options{
		SiteID:        cfg.SiteID,
		CycleInterval: cfg.CycleInterval,
		SweepInterval: cfg.SweepInterval,
		PurgeWindow:   cfg.PurgeWindow,
	}, b, engine, dissem, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
	srv.Handle("POST /recommenders/{name}", recommenderHandler(runner, cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// recommenderHandler runs a named recommender from an operator request. The
// body may carry dialog inputs and a drawn geometry; an empty body runs the
// recommender with defaults.
func recommenderHandler(runner *recommender.Runner, cfg *config.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			DialogInputs  domain.AttrMap   `json:"dialog_inputs"`
			SpatialInputs *domain.Geometry `json:"spatial_inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			httpadapter.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		outcome, err := runner.Run(r.Context(), r.PathValue("name"), recommender.Inputs{
			SiteID:        cfg.SiteID,
			Mode:          cfg.Mode,
			DialogInputs:  body.DialogInputs,
			SpatialInputs: body.SpatialInputs,
		})
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, domain.ErrInvalidInput) {
				status = http.StatusBadRequest
			}
			httpadapter.WriteJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		httpadapter.WriteJSON(w, http.StatusOK, outcome)
	})
}
