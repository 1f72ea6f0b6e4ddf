package invhaar

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/esimov/invhaar/milp"
	"github.com/joho/godotenv"
)

// Default configuration values.
const (
	DefaultEpsilon   = 1e-6
	DefaultTimeout   = 10 * time.Minute
	DefaultNodeLimit = 100000
	DefaultTolerance = 1e-10
	DefaultOutput    = "out.png"
	DefaultUpscale   = 10

	DefaultVerifyOutput = "verified.jpg"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvConfig  = "INVHAAR_CONFIG"
	EnvTimeout = "INVHAAR_TIMEOUT"
	EnvEpsilon = "INVHAAR_EPSILON"
)

// Config holds the solver and output settings of an inversion run.
// Unset fields fall back to the defaults returned by the Get* methods.
type Config struct {
	// Margin by which classifier and stage thresholds are tightened.
	Epsilon *float64 `json:"epsilon,omitempty"`
	// Solver time budget, a duration string like "30s".
	Timeout *string `json:"timeout,omitempty"`
	// Maximum number of branch and bound nodes.
	NodeLimit *int `json:"node_limit,omitempty"`
	// Simplex tolerance.
	Tolerance *float64 `json:"tolerance,omitempty"`
	// Goroutines used to build classifier constraints.
	Workers *int `json:"workers,omitempty"`

	Output        *string `json:"output,omitempty"`
	Upscale       *int    `json:"upscale,omitempty"`
	HeatmapOutput *string `json:"heatmap_output,omitempty"`
	LPOutput      *string `json:"lp_output,omitempty"`

	// Photo whose faces are checked against the cascade after solving.
	VerifyImage *string `json:"verify_image,omitempty"`
	// Binary pigo cascade used to locate the faces of VerifyImage.
	FaceCascade  *string `json:"face_cascade,omitempty"`
	VerifyOutput *string `json:"verify_output,omitempty"`
}

// EmptyConfig returns a Config with every field unset.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig reads a Config from a JSON file.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ConfigFromEnv builds the configuration of the command line tool. A .env
// file in the working directory is loaded first if present. INVHAAR_CONFIG
// names an optional JSON config file; INVHAAR_TIMEOUT and INVHAAR_EPSILON
// override the matching fields.
func ConfigFromEnv() (*Config, error) {
	// The .env file is optional.
	_ = godotenv.Load()

	cfg := EmptyConfig()
	if path := os.Getenv(EnvConfig); path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv(EnvTimeout); v != "" {
		cfg.Timeout = &v
	}
	if v := os.Getenv(EnvEpsilon); v != "" {
		eps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvEpsilon, v, err)
		}
		cfg.Epsilon = &eps
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *Config) Validate() error {
	if c.Epsilon != nil && *c.Epsilon < 0 {
		return fmt.Errorf("epsilon must be non-negative, got %g", *c.Epsilon)
	}
	if c.Timeout != nil && *c.Timeout != "" {
		d, err := time.ParseDuration(*c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout '%s': %w", *c.Timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
	}
	if c.NodeLimit != nil && *c.NodeLimit < 0 {
		return fmt.Errorf("node_limit must be non-negative, got %d", *c.NodeLimit)
	}
	if c.Tolerance != nil && *c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g", *c.Tolerance)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.GetVerifyImage() != "" && c.GetFaceCascade() == "" {
		return fmt.Errorf("verify_image requires a face_cascade")
	}
	if c.Upscale != nil && *c.Upscale < 1 {
		return fmt.Errorf("upscale must be at least 1, got %d", *c.Upscale)
	}
	return nil
}

// GetEpsilon returns the threshold margin or DefaultEpsilon.
func (c *Config) GetEpsilon() float64 {
	if c.Epsilon != nil {
		return *c.Epsilon
	}
	return DefaultEpsilon
}

// GetTimeout returns the solver time budget or DefaultTimeout.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout != nil && *c.Timeout != "" {
		if d, err := time.ParseDuration(*c.Timeout); err == nil {
			return d
		}
	}
	return DefaultTimeout
}

// GetNodeLimit returns the branch and bound node limit or DefaultNodeLimit.
func (c *Config) GetNodeLimit() int {
	if c.NodeLimit != nil {
		return *c.NodeLimit
	}
	return DefaultNodeLimit
}

// GetTolerance returns the simplex tolerance or DefaultTolerance.
func (c *Config) GetTolerance() float64 {
	if c.Tolerance != nil {
		return *c.Tolerance
	}
	return DefaultTolerance
}

// GetWorkers returns the number of model building goroutines, one per CPU by default.
func (c *Config) GetWorkers() int {
	if c.Workers != nil {
		return *c.Workers
	}
	return runtime.NumCPU()
}

// GetOutput returns the path of the solved image or DefaultOutput.
func (c *Config) GetOutput() string {
	if c.Output != nil && *c.Output != "" {
		return *c.Output
	}
	return DefaultOutput
}

// GetUpscale returns the output magnification or DefaultUpscale.
func (c *Config) GetUpscale() int {
	if c.Upscale != nil {
		return *c.Upscale
	}
	return DefaultUpscale
}

// GetHeatmapOutput returns the heatmap path; empty disables the heatmap.
func (c *Config) GetHeatmapOutput() string {
	if c.HeatmapOutput != nil {
		return *c.HeatmapOutput
	}
	return ""
}

// GetLPOutput returns the LP export path; empty disables the export.
func (c *Config) GetLPOutput() string {
	if c.LPOutput != nil {
		return *c.LPOutput
	}
	return ""
}

// GetVerifyImage returns the photo used for face verification; empty
// disables the verification.
func (c *Config) GetVerifyImage() string {
	if c.VerifyImage != nil {
		return *c.VerifyImage
	}
	return ""
}

// GetFaceCascade returns the path of the pigo face cascade.
func (c *Config) GetFaceCascade() string {
	if c.FaceCascade != nil {
		return *c.FaceCascade
	}
	return ""
}

// GetVerifyOutput returns the path of the annotated verification image or
// DefaultVerifyOutput.
func (c *Config) GetVerifyOutput() string {
	if c.VerifyOutput != nil && *c.VerifyOutput != "" {
		return *c.VerifyOutput
	}
	return DefaultVerifyOutput
}

// Solver returns the branch and bound solver described by the configuration.
func (c *Config) Solver() milp.Solver {
	return &milp.BranchAndBound{
		Tolerance: c.GetTolerance(),
		NodeLimit: c.GetNodeLimit(),
	}
}
