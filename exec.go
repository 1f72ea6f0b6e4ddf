package invhaar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/esimov/invhaar/milp"
	"github.com/esimov/invhaar/utils"
	"github.com/pkg/errors"
)

// Pipeline runs the whole inversion of a cascade description: load, build
// the constraint model, solve for the darkest accepted grid and write it out.
type Pipeline struct {
	Config *Config
	// Solver overrides the solver described by Config when set.
	Solver milp.Solver
	// Spinner, if set, is shown while the solver runs.
	Spinner *utils.Spinner
}

// Report describes a finished inversion.
type Report struct {
	Grid    Grid
	Output  string
	Heatmap string
	// Faces holds the verdict of the cascade on every face of the
	// verification image, if one was configured.
	Faces   []FaceResult
	Elapsed time.Duration
}

// Execute inverts the cascade found at src, a file path or URL, and writes
// the upscaled solution image to the configured output.
func (p *Pipeline) Execute(ctx context.Context, src string) (*Report, error) {
	now := time.Now()
	cfg := p.Config
	if cfg == nil {
		cfg = EmptyConfig()
	}

	path := src
	// Check if source path is a local file or URL.
	if utils.IsValidUrl(src) {
		f, err := utils.Download(src, "xml", "text")
		if err != nil {
			return nil, errors.Wrap(err, "failed to load the cascade")
		}
		f.Close()
		defer os.Remove(f.Name())
		path = f.Name()
	}

	cascade, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	utils.Logf("loaded %dx%d cascade: %d stages, %d classifiers, %d features",
		cascade.Width, cascade.Height, len(cascade.Stages), cascade.ClassifierCount(), len(cascade.Features))

	cm, err := BuildModel(ctx, cascade,
		WithEpsilon(cfg.GetEpsilon()),
		WithWorkers(cfg.GetWorkers()),
	)
	if err != nil {
		return nil, err
	}

	if lp := cfg.GetLPOutput(); lp != "" {
		cm.MinimizeIntensity()
		if err := writeLP(cm.Model, lp); err != nil {
			return nil, err
		}
	}

	solver := p.Solver
	if solver == nil {
		solver = cfg.Solver()
	}

	if p.Spinner != nil {
		p.Spinner.Start()
	}
	grid, err := NewInverter(solver, cfg).SolveMinIntensity(ctx, cm)
	if p.Spinner != nil {
		if err != nil {
			p.Spinner.StopMsg = fmt.Sprintf("%s %s\n",
				utils.DecorateText("⚡ INVHAAR", utils.StatusMessage),
				utils.DecorateText("solving failed ✘", utils.ErrorMessage))
		} else {
			p.Spinner.StopMsg = fmt.Sprintf("%s %s\n",
				utils.DecorateText("⚡ INVHAAR", utils.StatusMessage),
				utils.DecorateText("solution found ✔", utils.SuccessMessage))
		}
		p.Spinner.Stop()
	}
	if err != nil {
		return nil, err
	}

	report := &Report{Grid: grid, Output: cfg.GetOutput()}
	img := Upscale(GridToImage(grid), cfg.GetUpscale())
	if err := SaveImage(report.Output, img); err != nil {
		return nil, err
	}

	if hm := cfg.GetHeatmapOutput(); hm != "" {
		title := fmt.Sprintf("%s (%s)", DefaultModelName, filepath.Base(src))
		if err := SaveHeatmap(grid, title, hm); err != nil {
			return nil, err
		}
		report.Heatmap = hm
	}

	if photo := cfg.GetVerifyImage(); photo != "" {
		if report.Faces, err = verify(cascade, cfg); err != nil {
			return nil, err
		}
	}

	report.Elapsed = time.Since(now)
	return report, nil
}

// writeLP exports the model in LP format.
func writeLP(m *milp.Model, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "unable to create the LP file")
	}
	if err := m.WriteLP(f); err != nil {
		f.Close()
		return errors.Wrap(err, "unable to write the LP file")
	}
	return f.Close()
}

// verify runs the cascade over the faces pigo finds in the configured
// verification image and writes the annotated image.
func verify(c *Cascade, cfg *Config) ([]FaceResult, error) {
	loc, err := NewPigoLocatorFile(cfg.GetFaceCascade())
	if err != nil {
		return nil, err
	}
	img, err := DecodeImage(cfg.GetVerifyImage())
	if err != nil {
		return nil, err
	}

	faces, annotated, err := VerifyFaces(c, img, loc)
	if err != nil {
		return nil, err
	}
	for i, f := range faces {
		utils.Logf("face %02d at %v: detect=%d", i, f.Rect, f.Code)
	}
	if err := SaveImage(cfg.GetVerifyOutput(), annotated); err != nil {
		return nil, err
	}
	return faces, nil
}
