package main

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/banshee-data/gridloc/internal/db"
	"github.com/banshee-data/gridloc/internal/feed"
	"github.com/banshee-data/gridloc/internal/localizer"
	"github.com/banshee-data/gridloc/internal/monitoring"
	"github.com/banshee-data/gridloc/internal/security"
	"github.com/banshee-data/gridloc/internal/viz"
)

// runner applies feed commands to a session and records each accepted
// step when a store is attached.
type runner struct {
	session *localizer.Session
	mapName string

	store *db.DB
	runID string
}

func (r *runner) startRecording(store *db.DB) error {
	rows, cols := r.session.Beliefs().Dims()
	cfg := r.session.Config()
	id, err := store.StartRun(db.Run{
		MapName:  r.mapName,
		Rows:     rows,
		Cols:     cols,
		PHit:     cfg.Sensor.Hit,
		PMiss:    cfg.Sensor.Miss,
		Blurring: cfg.Blurring,
	})
	if err != nil {
		return err
	}
	r.store = store
	r.runID = id
	return nil
}

// apply runs one command. A rejected step leaves the beliefs unchanged and
// is not recorded.
func (r *runner) apply(cmd feed.Command) error {
	var err error
	switch cmd.Kind {
	case feed.KindSense:
		err = r.session.Sense(cmd.Color)
	case feed.KindMove:
		err = r.session.Move(cmd.DY, cmd.DX)
	default:
		err = fmt.Errorf("unknown command kind %v", cmd.Kind)
	}
	if err != nil {
		return fmt.Errorf("line %d %q: %w", cmd.Line, cmd, err)
	}

	est := r.session.Estimate()
	monitoring.Debugf("step %d (%s): peak (%d,%d) p=%.4f", r.session.Steps(), cmd, est.Row, est.Col, est.Probability)
	if r.store == nil {
		return nil
	}

	step := db.Step{
		RunID:           r.runID,
		Seq:             r.session.Steps(),
		Kind:            cmd.Kind.String(),
		PeakRow:         est.Row,
		PeakCol:         est.Col,
		PeakProbability: est.Probability,
		Entropy:         r.session.Entropy(),
	}
	if cmd.Kind == feed.KindSense {
		step.Observation = string(cmd.Color)
	} else {
		step.DY, step.DX = cmd.DY, cmd.DX
	}
	if err := r.store.RecordStep(step); err != nil {
		return fmt.Errorf("failed to record step: %w", err)
	}
	return nil
}

// finish prints the final beliefs, closes the run and writes the optional
// plot files.
func (r *runner) finish(out io.Writer, plotDir, htmlPath string) error {
	beliefs := r.session.Beliefs()
	est := r.session.Estimate()

	fmt.Fprintf(out, "beliefs after %d steps:\n", r.session.Steps())
	if err := viz.WriteGrid(out, beliefs, 3); err != nil {
		return err
	}
	fmt.Fprintf(out, "most likely cell: row %d col %d (p=%.4f, entropy %.4f nats)\n",
		est.Row, est.Col, est.Probability, r.session.Entropy())

	if r.store != nil {
		if err := r.store.FinishRun(r.runID, r.session.Steps()); err != nil {
			return err
		}
	}

	title := fmt.Sprintf("%s after %d steps", r.mapName, r.session.Steps())
	if plotDir != "" {
		path := filepath.Join(plotDir, pngName(r.mapName))
		if err := security.ValidateOutputPath(path); err != nil {
			return err
		}
		if err := viz.SaveHeatmapPNG(beliefs, title, path); err != nil {
			return err
		}
		log.Printf("wrote %s", path)
	}
	if htmlPath != "" {
		if err := security.ValidateOutputPath(htmlPath); err != nil {
			return err
		}
		err := writeFile(htmlPath, func(w io.Writer) error {
			return viz.RenderHeatMapHTML(w, beliefs, "Beliefs", title)
		})
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", htmlPath, err)
		}
		log.Printf("wrote %s", htmlPath)
	}
	return nil
}

// pngName derives the heatmap file name from the map file name.
func pngName(mapName string) string {
	stem := strings.TrimSuffix(mapName, filepath.Ext(mapName))
	return "beliefs-" + security.SanitizeFilename(stem) + ".png"
}
