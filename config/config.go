// Package config builds the immutable run configuration consumed by the
// network, trainer and evaluator constructors. Values come from three
// places, in increasing precedence: compiled-in defaults, a local JSON
// settings file, and the process environment. Every key has a documented
// default; environment values are strings and parse through the same typed
// schema as the file.
package config

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"
)

// Config is the full configuration surface. It is constructed once at
// startup and passed around by value semantics: nothing mutates it after
// Load returns.
type Config struct {
	LogName string

	// Timezone is the IANA zone name used for log timestamps and the
	// snapshot filename. Validated at load time.
	Timezone string

	// Remote collector and tracker settings. Host, port and key are
	// secrets: they are excluded from Printout by construction and a
	// guard fails the run if one ever shows up there.
	SyslogHost     string
	SyslogPort     string
	TrackerURL     string
	TrackerKey     string
	TrackerProject string

	DataDir           string
	BinarizeThreshold float64
	ImgWidth          int
	DataSplitSeed     int64
	TrainFraction     float64
	Categories        int
	OnlyDataSubset    bool

	Seed         int64
	Architecture []int
	BatchSize    int
	Epochs       int

	// UseGPU routes the final binarized evaluation through the WebGPU
	// forward path, with CPU fallback when no device is usable.
	UseGPU bool

	// PrintoutEvery and ValidateEvery are step cadences; 0 lets the
	// trainer derive them from the epoch length.
	PrintoutEvery int
	ValidateEvery int

	LearningRate   float32
	ConstGateDecay float32
	PassthroughReg float32
	ConnectionReg  float32
	GateWeightReg  float32
	CEStrength     float32
}

func defaults() *Config {
	return &Config{
		LogName:           "MNIST",
		Timezone:          "UTC",
		TrackerProject:    "mnist_project",
		DataDir:           "./data",
		BinarizeThreshold: 0.75,
		ImgWidth:          16,
		DataSplitSeed:     42,
		TrainFraction:     0.9,
		Categories:        10,
		Seed:              97798,
		Architecture:      []int{1300, 1300, 1300},
		BatchSize:         256,
		Epochs:            50,
		LearningRate:      0.01,
		ConstGateDecay:    0.05,
		PassthroughReg:    1,
		ConnectionReg:     5,
		GateWeightReg:     1,
		CEStrength:        0.9,
	}
}

// InputSize is the flattened feature width implied by the image size.
func (c *Config) InputSize() int {
	return c.ImgWidth * c.ImgWidth
}

// keys maps every configuration key to its destination field.
func (c *Config) keys() map[string]interface{} {
	return map[string]interface{}{
		"LOG_NAME":                   &c.LogName,
		"TIMEZONE":                   &c.Timezone,
		"SYSLOG_HOST":                &c.SyslogHost,
		"SYSLOG_PORT":                &c.SyslogPort,
		"TRACKER_URL":                &c.TrackerURL,
		"TRACKER_KEY":                &c.TrackerKey,
		"TRACKER_PROJECT":            &c.TrackerProject,
		"DATA_DIR":                   &c.DataDir,
		"BINARIZE_IMAGE_THRESHOLD":   &c.BinarizeThreshold,
		"IMG_WIDTH":                  &c.ImgWidth,
		"DATA_SPLIT_SEED":            &c.DataSplitSeed,
		"TRAIN_FRACTION":             &c.TrainFraction,
		"NUMBER_OF_CATEGORIES":       &c.Categories,
		"ONLY_USE_DATA_SUBSET":       &c.OnlyDataSubset,
		"SEED":                       &c.Seed,
		"USE_GPU":                    &c.UseGPU,
		"NET_ARCHITECTURE":           &c.Architecture,
		"BATCH_SIZE":                 &c.BatchSize,
		"EPOCHS":                     &c.Epochs,
		"PRINTOUT_EVERY":             &c.PrintoutEvery,
		"VALIDATE_EVERY":             &c.ValidateEvery,
		"LEARNING_RATE":              &c.LearningRate,
		"DECAY_CONST_GATES":          &c.ConstGateDecay,
		"PASSTHROUGH_REGULARIZATION": &c.PassthroughReg,
		"CONNECTION_REGULARIZATION":  &c.ConnectionReg,
		"GATE_WEIGHT_REGULARIZATION": &c.GateWeightReg,
		"LOSS_CE_STRENGTH":           &c.CEStrength,
	}
}

// Load builds the configuration. path names the optional JSON settings
// file; a missing file is not an error. A negative SEED is replaced by a
// random one so repeated runs explore different initializations.
func Load(path string) (*Config, error) {
	file := map[string]json.RawMessage{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, &file); err != nil {
				return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
		}
	}

	cfg := defaults()
	for key, dst := range cfg.keys() {
		raw, ok := lookup(key, file)
		if !ok {
			continue
		}
		if err := assign(dst, raw); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid value for TIMEZONE: %w", err)
	}
	if cfg.Seed < 0 {
		cfg.Seed = int64(rand.Intn(1_000_000))
	}
	return cfg, nil
}

// Location resolves the configured timezone. Load already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// lookup resolves one key: environment wins over the settings file. The
// returned value is raw JSON; bare environment strings are requoted so both
// sources parse identically.
func lookup(key string, file map[string]json.RawMessage) (json.RawMessage, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return json.RawMessage(v), true
	}
	raw, ok := file[key]
	return raw, ok
}

// assign parses a raw value into a typed destination field. Values that are
// valid JSON of the destination type are taken as-is; everything else is
// treated as a plain string (environment variables are usually unquoted).
func assign(dst interface{}, raw json.RawMessage) error {
	switch p := dst.(type) {
	case *string:
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			*p = s
			return nil
		}
		*p = string(raw)
		return nil
	case *bool:
		switch strings.ToLower(string(raw)) {
		case "true", "1", "yes":
			*p = true
			return nil
		case "false", "0", "no", "":
			*p = false
			return nil
		}
		return json.Unmarshal(raw, p)
	default:
		return json.Unmarshal(raw, dst)
	}
}

// secretKeys never appear in the loggable snapshot.
var secretKeys = []string{"SYSLOG_HOST", "SYSLOG_PORT", "TRACKER_URL", "TRACKER_KEY"}

// Printout returns the loggable configuration snapshot. Secrets are
// excluded structurally; the guard at the end is the enforced invariant
// that keeps it that way if the key list ever changes.
func (c *Config) Printout() (map[string]interface{}, error) {
	m := map[string]interface{}{
		"LOG_NAME":                   c.LogName,
		"TIMEZONE":                   c.Timezone,
		"TRACKER_PROJECT":            c.TrackerProject,
		"DATA_DIR":                   c.DataDir,
		"BINARIZE_IMAGE_THRESHOLD":   c.BinarizeThreshold,
		"IMG_WIDTH":                  c.ImgWidth,
		"INPUT_SIZE":                 c.InputSize(),
		"DATA_SPLIT_SEED":            c.DataSplitSeed,
		"TRAIN_FRACTION":             c.TrainFraction,
		"NUMBER_OF_CATEGORIES":       c.Categories,
		"ONLY_USE_DATA_SUBSET":       c.OnlyDataSubset,
		"SEED":                       c.Seed,
		"USE_GPU":                    c.UseGPU,
		"NET_ARCHITECTURE":           append([]int(nil), c.Architecture...),
		"BATCH_SIZE":                 c.BatchSize,
		"EPOCHS":                     c.Epochs,
		"PRINTOUT_EVERY":             c.PrintoutEvery,
		"VALIDATE_EVERY":             c.ValidateEvery,
		"LEARNING_RATE":              c.LearningRate,
		"DECAY_CONST_GATES":          c.ConstGateDecay,
		"PASSTHROUGH_REGULARIZATION": c.PassthroughReg,
		"CONNECTION_REGULARIZATION":  c.ConnectionReg,
		"GATE_WEIGHT_REGULARIZATION": c.GateWeightReg,
		"LOSS_CE_STRENGTH":           c.CEStrength,
	}
	for _, key := range secretKeys {
		if _, leaked := m[key]; leaked {
			return nil, fmt.Errorf("secret configuration key %s leaked into printout", key)
		}
	}
	return m, nil
}
