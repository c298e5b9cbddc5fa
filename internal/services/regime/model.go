// Package regime wraps the Gaussian HMM with feature standardisation and the
// Bull/Bear/Neutral mapping of hidden states.
package regime

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"RegimeTrader/internal/domain/models"
	domsvc "RegimeTrader/internal/domain/service"
	"RegimeTrader/internal/services/hmm"
	"RegimeTrader/pkg/config"
	"RegimeTrader/pkg/logger"
)

var (
	ErrInsufficientData = errors.New("insufficient training data")
	ErrModelFit         = errors.New("model fit failed")
	ErrNotTrained       = errors.New("model not trained")
	ErrAlreadyTrained   = errors.New("model already trained")
)

type (
	Decoding  = domsvc.Decoding
	Posterior = domsvc.Posterior
)

// Model is constructed untrained, trained exactly once, and read-only after
// that, so Decode and Posterior may be called concurrently.
type Model struct {
	cfg config.RegimeConfig
	log *logger.Logger

	mu      sync.RWMutex
	trained bool
	scaler  *Scaler
	hmm     *hmm.Gaussian
	fit     *hmm.FitResult
	bull    []int
	bear    []int
	width   int
}

type Option func(*Model)

func WithLogger(l *logger.Logger) Option {
	return func(m *Model) { m.log = l }
}

func New(cfg config.RegimeConfig, opts ...Option) *Model {
	m := &Model{cfg: cfg, log: logger.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Train standardises the features and fits the HMM. Rows containing NaN are
// dropped. On any failure the model stays untrained.
func (m *Model) Train(features [][]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.trained {
		return ErrAlreadyTrained
	}
	if len(features) == 0 || len(features) < m.cfg.MinSamples {
		return fmt.Errorf("%w: need at least %d samples, got %d", ErrInsufficientData, m.cfg.MinSamples, len(features))
	}

	width := len(features[0])
	_, rows := cleanRows(features, width)
	if len(rows) < m.cfg.MinSamples || len(rows) < m.cfg.States {
		return fmt.Errorf("%w: %d usable samples after dropping invalid rows", ErrInsufficientData, len(rows))
	}

	scaler := FitScaler(rows)
	g, res, err := hmm.Fit(scaler.Transform(rows), hmm.FitOptions{
		States:     m.cfg.States,
		Iterations: m.cfg.Iterations,
		Tolerance:  m.cfg.Tolerance,
		Seed:       m.cfg.Seed,
		MinCovar:   hmm.DefaultMinCovar,
		CovarPrior: hmm.DefaultCovarPrior,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelFit, err)
	}

	returnMeans := make([]float64, len(g.Means))
	for i, mean := range g.Means {
		returnMeans[i] = mean[0]
	}
	m.bull, m.bear = Classify(returnMeans)
	m.scaler, m.hmm, m.fit, m.width = scaler, g, res, width
	m.trained = true

	m.log.Info("regime model trained",
		logger.Int("samples", len(rows)),
		logger.Int("states", m.cfg.States),
		logger.Int("iterations", res.Iterations),
		logger.Bool("converged", res.Converged),
		logger.Float64("log_likelihood", res.LogLikelihood),
		logger.Any("bull_states", m.bull),
		logger.Any("bear_states", m.bear),
	)
	return nil
}

// Decode returns the Viterbi state path over the usable rows of features.
func (m *Model) Decode(features [][]float64) (*Decoding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.trained {
		return nil, ErrNotTrained
	}
	idx, rows := cleanRows(features, m.width)
	if len(rows) == 0 {
		return &Decoding{}, nil
	}
	path, _, err := m.hmm.Viterbi(m.scaler.Transform(rows))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &Decoding{Rows: idx, States: path}, nil
}

// Posterior returns per-row state probabilities over the usable rows.
func (m *Model) Posterior(features [][]float64) (*Posterior, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.trained {
		return nil, ErrNotTrained
	}
	idx, rows := cleanRows(features, m.width)
	if len(rows) == 0 {
		return &Posterior{}, nil
	}
	prob, _, err := m.hmm.Posterior(m.scaler.Transform(rows))
	if err != nil {
		return nil, fmt.Errorf("posterior: %w", err)
	}
	return &Posterior{Rows: idx, Prob: prob}, nil
}

// CurrentRegime decodes the last usable row on its own.
func (m *Model) CurrentRegime(features [][]float64) (models.Regime, int, error) {
	for i := len(features) - 1; i >= 0; i-- {
		d, err := m.Decode(features[i : i+1])
		if err != nil {
			return models.RegimeNeutral, 0, err
		}
		if len(d.States) == 1 {
			return m.LabelForState(d.States[0]), d.States[0], nil
		}
	}
	return models.RegimeNeutral, 0, fmt.Errorf("%w: no usable rows", ErrInsufficientData)
}

// LabelForState maps a state id to its regime. Unknown ids, and every id
// before training, are Neutral.
func (m *Model) LabelForState(state int) models.Regime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.bull {
		if s == state {
			return models.RegimeBull
		}
	}
	for _, s := range m.bear {
		if s == state {
			return models.RegimeBear
		}
	}
	return models.RegimeNeutral
}

func (m *Model) Trained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trained
}

// Summary is a read-only view of the trained parameters.
type Summary struct {
	States        int         `json:"states"`
	Iterations    int         `json:"iterations"`
	Converged     bool        `json:"converged"`
	LogLikelihood float64     `json:"log_likelihood"`
	Means         [][]float64 `json:"means"`
	Covars        [][]float64 `json:"covars"`
	TransMat      [][]float64 `json:"transmat"`
	StartProb     []float64   `json:"startprob"`
	Scaler        Scaler      `json:"scaler"`
	BullStates    []int       `json:"bull_states"`
	BearStates    []int       `json:"bear_states"`
}

func (m *Model) Summary() (*Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.trained {
		return nil, ErrNotTrained
	}
	g := m.hmm.Clone()
	return &Summary{
		States:        g.States(),
		Iterations:    m.fit.Iterations,
		Converged:     m.fit.Converged,
		LogLikelihood: m.fit.LogLikelihood,
		Means:         g.Means,
		Covars:        g.Covars,
		TransMat:      g.TransMat,
		StartProb:     g.StartProb,
		Scaler:        Scaler{Mean: append([]float64{}, m.scaler.Mean...), Scale: append([]float64{}, m.scaler.Scale...)},
		BullStates:    append([]int{}, m.bull...),
		BearStates:    append([]int{}, m.bear...),
	}, nil
}

// cleanRows keeps rows of the expected width whose values are all finite,
// returning them with their source indices.
func cleanRows(features [][]float64, width int) ([]int, [][]float64) {
	idx := make([]int, 0, len(features))
	rows := make([][]float64, 0, len(features))
outer:
	for i, row := range features {
		if len(row) != width || width == 0 {
			continue
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue outer
			}
		}
		idx = append(idx, i)
		rows = append(rows, row)
	}
	return idx, rows
}

var _ domsvc.RegimeClassifier = (*Model)(nil)
