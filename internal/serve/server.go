package serve

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"fxcast/internal/artifact"
	"fxcast/internal/dataset"
	"fxcast/internal/metrics"
)

// PredictRequest is the POST /predict body: one feature map per row, keyed by
// the lookback column names the model was trained on.
type PredictRequest struct {
	Inputs []map[string]float64 `json:"inputs" validate:"required,min=1,dive,required"`
}

// PredictResponse carries one prediction per input row.
type PredictResponse struct {
	Pair         string    `json:"pair"`
	ModelKind    string    `json:"model_kind"`
	ModelVersion string    `json:"model_version"`
	Predictions  []float64 `json:"predictions"`
	ServedAt     time.Time `json:"served_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status       string    `json:"status"`
	Pair         string    `json:"pair"`
	ModelKind    string    `json:"model_kind"`
	ModelVersion string    `json:"model_version"`
	TrainedAt    time.Time `json:"trained_at"`
}

// Options configures the prediction server. ModelVersion is a label for the
// loaded model ("v3" from the registry, "local" from disk).
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
	ModelVersion    string
}

// Server exposes a fitted artifact over HTTP: POST /predict scores raw
// lookback windows, GET /healthz reports the loaded model, GET /metrics
// serves the process registry.
type Server struct {
	opts     Options
	artifact *artifact.Artifact
	echo     *echo.Echo
	logger   zerolog.Logger
	recorder *metrics.Recorder
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// NewServer wires the echo instance around a loaded artifact.
func NewServer(opts Options, a *artifact.Artifact, logger zerolog.Logger, recorder *metrics.Recorder) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("serve: no artifact loaded")
	}
	if _, err := a.Model(); err != nil {
		return nil, err
	}
	if opts.Addr == "" {
		opts.Addr = ":8000"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.ModelVersion == "" {
		opts.ModelVersion = "local"
	}

	s := &Server{
		opts:     opts,
		artifact: a,
		logger:   logger.With().Str("component", "serve").Logger(),
		recorder: recorder,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}
	e.Use(middleware.Recover())

	e.POST("/predict", s.handlePredict)
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo = e
	return s, nil
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until the context is cancelled, then drains in-flight
// requests.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.opts.Addr)
	}()
	s.logger.Info().Str("addr", s.opts.Addr).Str("pair", s.artifact.Pair).Msg("prediction server listening")

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) handlePredict(c echo.Context) error {
	var req PredictRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "inputs must contain at least one row"})
	}

	table, err := s.tableFromInputs(req.Inputs)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	predictions, err := s.artifact.PredictTable(table)
	if err != nil {
		s.logger.Error().Err(err).Msg("prediction failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "prediction failed"})
	}

	s.recorder.PredictionServed()
	return c.JSON(http.StatusOK, PredictResponse{
		Pair:         s.artifact.Pair,
		ModelKind:    string(s.artifact.ModelKind),
		ModelVersion: s.opts.ModelVersion,
		Predictions:  predictions,
		ServedAt:     time.Now().UTC(),
	})
}

// tableFromInputs checks every row carries exactly the lookback columns the
// model expects, each holding a positive rate, and assembles them into a
// window table.
func (s *Server) tableFromInputs(inputs []map[string]float64) (*dataset.Table, error) {
	lookback := s.artifact.Lookback

	for i, row := range inputs {
		if len(row) != lookback {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), lookback)
		}
		for n := 1; n <= lookback; n++ {
			name := dataset.CloseColumnName(n)
			value, ok := row[name]
			if !ok {
				return nil, fmt.Errorf("row %d is missing %s", i, name)
			}
			if value <= 0 {
				return nil, fmt.Errorf("row %d has non-positive %s: %v", i, name, value)
			}
		}
	}

	dates := make([]time.Time, len(inputs))
	target := make([]float64, len(inputs))
	now := time.Now().UTC()
	for i := range dates {
		dates[i] = now
	}

	table, err := dataset.NewTable(dates, target)
	if err != nil {
		return nil, err
	}
	for n := lookback; n >= 1; n-- {
		name := dataset.CloseColumnName(n)
		col := make([]float64, len(inputs))
		for i, row := range inputs {
			col[i] = row[name]
		}
		if err := table.AddColumn(name, col); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:       "ok",
		Pair:         s.artifact.Pair,
		ModelKind:    string(s.artifact.ModelKind),
		ModelVersion: s.opts.ModelVersion,
		TrainedAt:    s.artifact.TrainedAt,
	})
}
