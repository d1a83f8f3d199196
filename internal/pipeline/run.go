package pipeline

import (
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/amrel/internal/config"
	"github.com/banshee-data/amrel/internal/geom"
)

// Run executes the configured step. Import requests short-circuit the
// pipeline; otherwise the sector is resolved and the requested stage (or
// the whole chain) runs, each stage persisting its artifact so any later
// stage can resume from it.
func (t *Tool) Run() error {
	t.markStart()
	if t.cfg.ImportRequested() {
		if len(t.cfg.DtmImports) > 0 {
			if err := t.cfg.ImportDtm(); err != nil {
				return err
			}
		}
		if t.cfg.XyzFile != "" {
			if err := t.cfg.ImportXyz(); err != nil {
				return err
			}
		}
		return nil
	}
	if err := t.cfg.SetTiles(); err != nil {
		return err
	}
	if err := os.MkdirAll(config.StepsDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", config.StepsDir, err)
	}
	if t.cfg.SeedCheck {
		if err := t.loadSeeds(); err != nil {
			return err
		}
		if err := t.loadTileSet(false, false); err != nil {
			return err
		}
		t.rebucketSeeds()
		t.checkSeeds()
		return nil
	}
	if t.cfg.HillMap {
		return t.saveHillImage()
	}

	switch t.cfg.Step {
	case config.StepAll:
		if err := t.processSawing(); err != nil {
			return err
		}
		if err := t.processAsd(); err != nil {
			return err
		}
		return t.finalizeAsd()

	case config.StepSawing:
		if err := t.processSawing(); err != nil {
			return err
		}
		if err := t.saveSeeds(); err != nil {
			return err
		}
		if t.cfg.Verbose && t.cfg.OutMap {
			log.Printf("[Pipeline] --map : only with --shade, --rorpo, --sobel, --fbsd or --seeds")
		}
		return nil

	case config.StepShade:
		if err := t.loadTileSet(true, false); err != nil {
			return err
		}
		t.processShading()
		if err := t.saveShadingMap(); err != nil {
			return err
		}
		if t.cfg.OutMap {
			if err := t.saveShadingImage(); err != nil {
				return err
			}
		}
		t.clearDtm()
		return nil

	case config.StepRorpo:
		if err := t.loadShadingMap(); err != nil {
			return err
		}
		t.processRorpo()
		if err := t.saveRorpoMap(); err != nil {
			return err
		}
		if t.cfg.OutMap {
			if err := t.saveRorpoImage(); err != nil {
				return err
			}
		}
		t.clearShading()
		return nil

	case config.StepSobel:
		// With RORPO skipped the gradient consumes the shading artifact.
		if t.cfg.RorpoOff {
			if err := t.loadShadingMap(); err != nil {
				return err
			}
		} else if err := t.loadRorpoMap(); err != nil {
			return err
		}
		t.processSobel()
		if err := t.saveSobelMap(); err != nil {
			return err
		}
		if t.cfg.OutMap {
			if err := t.saveSobelImage(); err != nil {
				return err
			}
		}
		t.clearRorpo()
		t.clearShading()
		return nil

	case config.StepFbsd:
		if err := t.loadSobelMap(); err != nil {
			return err
		}
		t.processFbsd()
		if err := t.saveFbsdSegments(); err != nil {
			return err
		}
		if t.cfg.OutMap {
			if err := t.saveFbsdImage(); err != nil {
				return err
			}
		}
		t.clearSobel()
		return nil

	case config.StepSeeds:
		if err := t.loadTileSet(false, false); err != nil {
			return err
		}
		if err := t.loadFbsdSegments(); err != nil {
			return err
		}
		t.processSeeds(-1)
		if err := t.saveSeeds(); err != nil {
			return err
		}
		if t.cfg.OutMap {
			return t.saveSeedsImage()
		}
		return nil

	case config.StepAsd:
		if err := t.loadSeeds(); err != nil {
			return err
		}
		if err := t.loadTileSet(false, false); err != nil {
			return err
		}
		t.rebucketSeeds()
		if err := t.processAsd(); err != nil {
			return err
		}
		return t.finalizeAsd()
	}
	return nil
}

// checkSeeds prints the seed buckets in serpentine order.
func (t *Tool) checkSeeds() {
	log.Printf("[Pipeline] Check seeds")
	cot := t.ptset.ColumnsOfTiles()
	rot := t.ptset.RowsOfTiles()
	ser := geom.NewSerpentine(cot, rot)
	for k := ser.Next(); k != -1; k = ser.Next() {
		log.Printf("[Pipeline] Seeds %d (%d, %d) : %d", k, k%cot, k/cot, len(t.outSeeds[k])/2)
		b := t.outSeeds[k]
		for i := 0; i+1 < len(b); i += 2 {
			log.Printf("[Pipeline]   seed (%d, %d) (%d, %d)",
				b[i].X, b[i].Y, b[i+1].X, b[i+1].Y)
		}
	}
}
