// Command amrel extracts forest-road centerlines from airborne LiDAR tile
// sets. Flags select the pipeline entry step and tune the stage knobs; the
// positional argument names the tile-set file under tilesets/.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/banshee-data/amrel/internal/cloud"
	"github.com/banshee-data/amrel/internal/config"
	"github.com/banshee-data/amrel/internal/pipeline"
)

func main() {
	cfg := config.New()
	if err := cfg.Load(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := parseArgs(cfg, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := pipeline.New(cfg).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseArgs applies the command line to the configuration. The grammar
// mirrors the reference tool: long flags, some taking one value, plus one
// positional tile-set name.
func parseArgs(cfg *config.Config, args []string) error {
	intArg := func(i *int, name string) (int, error) {
		*i++
		if *i >= len(args) {
			return 0, fmt.Errorf("%s: missing value", name)
		}
		v, err := strconv.Atoi(args[*i])
		if err != nil {
			return 0, fmt.Errorf("%s: bad value %q", name, args[*i])
		}
		return v, nil
	}
	strArg := func(i *int, name, what string) (string, error) {
		*i++
		if *i >= len(args) {
			return "", fmt.Errorf("%s missing", what)
		}
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(arg) == 0 || arg[0] != '-' {
			if err := cfg.SetInputName(arg); err != nil {
				return err
			}
			continue
		}
		switch arg {
		case "--auto":
			cfg.Step = config.StepAll
		case "--sawing":
			cfg.Step = config.StepSawing
		case "--shade":
			cfg.Step = config.StepShade
		case "--rorpo":
			cfg.Step = config.StepRorpo
		case "--sobel":
			cfg.Step = config.StepSobel
		case "--fbsd":
			cfg.Step = config.StepFbsd
		case "--seeds":
			cfg.Step = config.StepSeeds
		case "--asd":
			cfg.Step = config.StepAsd
		case "--eco":
			cfg.CloudAccess = cloud.ECO
		case "--mid":
			cfg.CloudAccess = cloud.MID
		case "--top":
			cfg.CloudAccess = cloud.TOP
		case "--pad":
			v, err := intArg(&i, arg)
			if err != nil {
				return err
			}
			if err := cfg.SetPadSize(v); err != nil {
				return err
			}
		case "--buf":
			v, err := intArg(&i, arg)
			if err != nil {
				return err
			}
			if err := cfg.SetBufferSize(v); err != nil {
				return err
			}
		case "--tailminsize":
			v, err := intArg(&i, arg)
			if err != nil {
				return err
			}
			cfg.SetTailMinSize(v)
		case "--hill":
			cfg.HillMap = true
		case "--map":
			cfg.OutMap = true
		case "--color":
			cfg.FalseColor = true
		case "--dtm":
			cfg.BackDtm = true
		case "--unconnected":
			cfg.Connected = false
		case "--nororpo":
			cfg.RorpoOff = true
		case "--export":
			cfg.ExportOn = true
		case "--halfsize":
			cfg.HalfSizeSeeds = true
		case "--seedcheck":
			cfg.SeedCheck = true
		case "--bsminlength":
			v, err := intArg(&i, arg)
			if err != nil {
				return err
			}
			cfg.SetMinBSLength(v)
		case "--bsmaxthick":
			v, err := intArg(&i, arg)
			if err != nil {
				return err
			}
			cfg.SetMaxBSThickness(v)
		case "--seedshift":
			v, err := intArg(&i, arg)
			if err != nil {
				return err
			}
			cfg.SetSeedShift(v)
		case "--seedwidth":
			v, err := intArg(&i, arg)
			if err != nil {
				return err
			}
			cfg.SetSeedWidth(v)
		case "--silent":
			cfg.Verbose = false
		case "--dtmdir":
			dir, err := strArg(&i, arg, "DTM files path")
			if err != nil {
				return err
			}
			cfg.DtmDir = dir
		case "--xyzdir":
			dir, err := strArg(&i, arg, "XYZ files path")
			if err != nil {
				return err
			}
			cfg.XyzDir = dir
		case "--import", "-i":
			name, err := strArg(&i, arg, "imported tile name")
			if err != nil {
				return err
			}
			cfg.SetImportFile(name)
		case "--tile", "-t":
			name, err := strArg(&i, arg, "tile name")
			if err != nil {
				return err
			}
			cfg.AddTileName(name)
		default:
			return fmt.Errorf("unknown option %s", arg)
		}
	}
	return nil
}
