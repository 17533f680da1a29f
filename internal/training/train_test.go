package training

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fxcast/internal/market"
	"fxcast/internal/model"
	"fxcast/internal/rates"
)

func syntheticSeries(t *testing.T, n int) *rates.Series {
	t.Helper()
	pair, err := market.NewPair("GBP", "GHS")
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}

	rng := rand.New(rand.NewSource(11))
	series := &rates.Series{Pair: pair}
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	level := 14.0
	for i := 0; i < n; i++ {
		level += 0.01 + rng.NormFloat64()*0.02
		close := decimal.NewFromFloat(level)
		series.Append(rates.Record{
			Date:  day,
			Pair:  pair,
			Open:  close,
			High:  close,
			Low:   close,
			Close: close,
		})
		day = day.AddDate(0, 0, 1)
	}
	return series
}

func TestPartitionByPrefix(t *testing.T) {
	pre, mod := Partition(map[string]float64{
		"rsi_length": 14,
		"ema_length": 9,
		"alpha":      0.1,
		"num_leaves": 32,
	})
	if len(pre) != 2 || pre["rsi_length"] != 14 || pre["ema_length"] != 9 {
		t.Fatalf("preprocessing partition wrong: %v", pre)
	}
	if len(mod) != 2 || mod["alpha"] != 0.1 || mod["num_leaves"] != 32 {
		t.Fatalf("model partition wrong: %v", mod)
	}
}

func TestSamplerStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, kind := range []model.Kind{model.KindLasso, model.KindLightGBM, model.KindXGBoost} {
		s := &Searcher{Kind: kind}
		for i := 0; i < 50; i++ {
			params := s.sample(rng)
			if v := params["rsi_length"]; v < 5 || v > 20 {
				t.Fatalf("%s: rsi_length %v out of range", kind, v)
			}
			if v := params["ema_length"]; v < 5 || v > 30 {
				t.Fatalf("%s: ema_length %v out of range", kind, v)
			}
			switch kind {
			case model.KindLasso:
				if v := params["alpha"]; v < 0.01 || v > 1 {
					t.Fatalf("alpha %v out of range", v)
				}
			case model.KindLightGBM:
				if v := params["num_leaves"]; v < 2 || v > 256 {
					t.Fatalf("num_leaves %v out of range", v)
				}
				if v := params["bagging_fraction"]; v < 0.2 || v > 1 {
					t.Fatalf("bagging_fraction %v out of range", v)
				}
			case model.KindXGBoost:
				if v := params["max_depth"]; v < 1 || v > 10 {
					t.Fatalf("max_depth %v out of range", v)
				}
				if v := params["eta"]; v < 0.01 || v > 0.3 {
					t.Fatalf("eta %v out of range", v)
				}
			}
		}
	}
}

func TestSearchDeterministicForSeed(t *testing.T) {
	series := syntheticSeries(t, 160)
	trainer, err := NewTrainer(Options{
		Pair:          series.Pair,
		Lookback:      10,
		PctChangeDays: []int{2, 5},
		Kind:          model.KindLasso,
		Trials:        3,
		Seed:          42,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewTrainer: %v", err)
	}

	a1, err := trainer.Run(context.Background(), series)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	a2, err := trainer.Run(context.Background(), series)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a1.TestMAE != a2.TestMAE {
		t.Fatalf("same seed must reproduce the run: %v vs %v", a1.TestMAE, a2.TestMAE)
	}
	for name, v := range a1.Preprocessing {
		if a2.Preprocessing[name] != v {
			t.Fatalf("preprocessing %s differs across identical runs", name)
		}
	}
}

func TestTrainerProducesScoringArtifact(t *testing.T) {
	series := syntheticSeries(t, 200)
	trainer, err := NewTrainer(Options{
		Pair:          series.Pair,
		Lookback:      10,
		PctChangeDays: []int{2, 5},
		Kind:          model.KindLasso,
		Trials:        4,
		Seed:          7,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewTrainer: %v", err)
	}

	a, err := trainer.Run(context.Background(), series)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if a.ModelKind != model.KindLasso {
		t.Fatalf("artifact kind = %s", a.ModelKind)
	}
	if len(a.Features) == 0 {
		t.Fatal("artifact must record the fitted feature layout")
	}
	if math.IsNaN(a.TestMAE) || a.TestMAE <= 0 {
		t.Fatalf("held-out MAE = %v", a.TestMAE)
	}
	// The series drifts ~0.01/day around level 14; a fitted model should hold
	// the MAE well under a full unit.
	if a.TestMAE > 1 {
		t.Fatalf("held-out MAE unexpectedly large: %v", a.TestMAE)
	}
	if _, ok := a.Preprocessing["rsi_length"]; !ok {
		t.Fatal("search must record the sampled rsi length")
	}
}

func TestTrainerRejectsTinySeries(t *testing.T) {
	series := syntheticSeries(t, 12)
	trainer, err := NewTrainer(Options{
		Pair:     series.Pair,
		Lookback: 10,
		Kind:     model.KindLasso,
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewTrainer: %v", err)
	}
	if _, err := trainer.Run(context.Background(), series); err == nil {
		t.Fatal("a series too short to window and split must fail")
	}
}

func TestTrainerSkipsSearchOnRequest(t *testing.T) {
	series := syntheticSeries(t, 160)
	trainer, err := NewTrainer(Options{
		Pair:          series.Pair,
		Lookback:      10,
		PctChangeDays: []int{2},
		Kind:          model.KindLasso,
		SkipSearch:    true,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewTrainer: %v", err)
	}

	a, err := trainer.Run(context.Background(), series)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.Preprocessing["rsi_length"] != 14 || a.Preprocessing["ema_length"] != 9 {
		t.Fatalf("skip-search must use default lengths: %v", a.Preprocessing)
	}
	if a.Lasso == nil {
		t.Fatal("skip-search must still fit the model")
	}
}

func TestBoostedFamilySearch(t *testing.T) {
	series := syntheticSeries(t, 160)
	trainer, err := NewTrainer(Options{
		Pair:          series.Pair,
		Lookback:      10,
		PctChangeDays: []int{2},
		Kind:          model.KindLightGBM,
		Trials:        2,
		Seed:          1,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewTrainer: %v", err)
	}

	a, err := trainer.Run(context.Background(), series)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.Boost == nil {
		t.Fatal("boosted family must serialize under the boost field")
	}
	if _, ok := a.ModelParams["num_leaves"]; !ok {
		t.Fatalf("lightgbm search must sample num_leaves: %v", a.ModelParams)
	}
}
