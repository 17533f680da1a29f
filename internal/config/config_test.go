package config

import (
	"os"
	"path/filepath"
	"testing"

	"fxcast/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: fxcast\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	pair, err := cfg.Pair()
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}
	if pair.String() != "GBPGHS" {
		t.Fatalf("default pair = %s", pair)
	}
	if cfg.Market.CutoffHourUTC != 22 {
		t.Fatalf("default cutoff = %d", cfg.Market.CutoffHourUTC)
	}
	if cfg.Training.Lookback != 30 || cfg.Training.Folds != 5 {
		t.Fatalf("training defaults wrong: %+v", cfg.Training)
	}
	if kind, err := cfg.ModelKind(); err != nil || kind != model.KindLasso {
		t.Fatalf("default model = %v (%v)", kind, err)
	}
	if start, err := cfg.HistoryStart(); err != nil || start.Year() != 2017 {
		t.Fatalf("default history start = %v (%v)", start, err)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
market:
  base: usd
  target: ghs
  cutoff_hour_utc: 21
training:
  lookback: 14
  pct_change_days: [2, 7]
  model: xgboost
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	pair, _ := cfg.Pair()
	if pair.String() != "USDGHS" {
		t.Fatalf("pair = %s", pair)
	}
	if cfg.Market.CutoffHourUTC != 21 {
		t.Fatalf("cutoff = %d", cfg.Market.CutoffHourUTC)
	}
	if len(cfg.Training.PctChangeDays) != 2 || cfg.Training.PctChangeDays[1] != 7 {
		t.Fatalf("pct_change_days = %v", cfg.Training.PctChangeDays)
	}
	if kind, _ := cfg.ModelKind(); kind != model.KindXGBoost {
		t.Fatalf("model = %v", kind)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad pair", "market:\n  base: GB\n"},
		{"bad cutoff", "market:\n  cutoff_hour_utc: 24\n"},
		{"bad history start", "market:\n  history_start: 2017/01/01\n"},
		{"zero lookback", "training:\n  lookback: 0\n"},
		{"pct horizon beyond lookback", "training:\n  lookback: 10\n  pct_change_days: [14]\n"},
		{"one fold", "training:\n  folds: 1\n"},
		{"unknown model", "training:\n  model: prophet\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
