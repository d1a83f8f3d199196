// Package config holds the typed, validated AMREL parameter record: the
// knobs of every pipeline stage, the tile-set bookkeeping, and the
// derivation of missing point tile files.
package config

import (
	"bufio"
	"bytes"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/banshee-data/amrel/internal/cloud"
	"github.com/banshee-data/amrel/internal/fsutil"
	"github.com/banshee-data/amrel/internal/seeds"
)

// Version of the tool, recorded in the detector snapshot.
const Version = "1.1.1"

// Step identifies the pipeline entry point of a run.
type Step int

// The legal step modes.
const (
	StepAll Step = iota
	StepShade
	StepRorpo
	StepSobel
	StepFbsd
	StepSeeds
	StepAsd
	StepSawing
)

func (s Step) String() string {
	switch s {
	case StepShade:
		return "SHADING"
	case StepRorpo:
		return "RORPO"
	case StepSobel:
		return "SOBEL"
	case StepFbsd:
		return "FBSD"
	case StepSeeds:
		return "SEEDS"
	case StepAsd:
		return "ASD"
	case StepSawing:
		return "SAWING"
	default:
		return "ALL"
	}
}

// Directory layout under the working directory.
const (
	ConfigFile  = "config.ini"
	NvmDir      = "nvm/"
	TilDir      = "til/"
	TilesetDir  = "tilesets/"
	StepsDir    = "steps"
	LastSetName = "last_set"
	LastTiles   = "last_tiles"
	TxtSuffix   = ".txt"
)

// Defaults of the seed-stage knobs.
const (
	DefaultMaxBSThickness = 7
	DefaultMinBSLength    = 80
)

// Config is the full parameter record of one run.
type Config struct {
	fs fsutil.FileSystem

	CloudAccess    int
	MaxBSThickness int
	MinBSLength    int
	SeedShift      int
	SeedWidth      int
	PadSize        int
	BufferSize     int
	TailMinSize    int
	TailMinSet     bool
	Step           Step
	RorpoOff       bool
	Connected      bool
	HillMap        bool
	OutMap         bool
	BackDtm        bool
	FalseColor     bool
	SeedCheck      bool
	HalfSizeSeeds  bool
	ExportOn       bool
	Verbose        bool

	sectorName string
	tileNames  []string

	DtmDir     string
	XyzDir     string
	DtmImports []string
	XyzFile    string
}

// New returns a configuration with the reference defaults, before any
// config file or flag is applied.
func New() *Config {
	return &Config{
		fs:             fsutil.OSFileSystem{},
		CloudAccess:    cloud.TOP,
		MaxBSThickness: DefaultMaxBSThickness,
		MinBSLength:    DefaultMinBSLength,
		SeedShift:      seeds.DefaultShift,
		SeedWidth:      seeds.DefaultWidth,
		Step:           StepAll,
		Connected:      true,
		Verbose:        true,
		sectorName:     LastSetName,
	}
}

// NewFS returns a default configuration bound to an explicit filesystem.
func NewFS(fs fsutil.FileSystem) *Config {
	c := New()
	c.fs = fs
	return c
}

// SetMaxBSThickness clamps to the FBSD floor.
func (c *Config) SetMaxBSThickness(v int) {
	if v < 3 {
		v = 3
	}
	c.MaxBSThickness = v
}

// SetMinBSLength clamps at zero.
func (c *Config) SetMinBSLength(v int) {
	if v < 0 {
		v = 0
	}
	c.MinBSLength = v
}

// SetSeedShift clamps to the seed spacing floor.
func (c *Config) SetSeedShift(v int) {
	if v < seeds.MinSeedShift {
		v = seeds.MinSeedShift
	}
	c.SeedShift = v
}

// SetSeedWidth clamps to the seed width floor.
func (c *Config) SetSeedWidth(v int) {
	if v < seeds.MinSeedWidth {
		v = seeds.MinSeedWidth
	}
	c.SeedWidth = v
}

// SetPadSize accepts zero (no sawing) or a positive odd tile count.
func (c *Config) SetPadSize(v int) error {
	if v < 0 || (v != 0 && v%2 == 0) {
		return fmt.Errorf("pad size must be zero or positive odd, got %d", v)
	}
	c.PadSize = v
	return nil
}

// SetBufferSize accepts zero (all resident) or a positive odd window side.
func (c *Config) SetBufferSize(v int) error {
	if v < 0 || (v != 0 && v%2 == 0) {
		return fmt.Errorf("buffer size must be zero or positive odd, got %d", v)
	}
	c.BufferSize = v
	return nil
}

// SetTailMinSize records the ASD tail pruning floor.
func (c *Config) SetTailMinSize(v int) {
	if v < 0 {
		v = 0
	}
	c.TailMinSize = v
	c.TailMinSet = true
}

// InputName returns the sector (tile set) name of the run.
func (c *Config) InputName() string { return c.sectorName }

// SetInputName accepts the positional sector argument; a second conflicting
// name is refused.
func (c *Config) SetInputName(name string) error {
	if c.sectorName != LastSetName {
		return fmt.Errorf("conflicting input names: %s and %s", c.sectorName, name)
	}
	c.sectorName = name
	return nil
}

// AddTileName collects an explicit tile name from the command line.
func (c *Config) AddTileName(name string) { c.tileNames = append(c.tileNames, name) }

// TilPrefix returns the tile path prefix of the configured class, e.g.
// "til/mid/mid_".
func (c *Config) TilPrefix() string {
	return TilDir + cloud.ClassDir(c.CloudAccess) + cloud.ClassPrefix(c.CloudAccess)
}

// NvmPath returns the normal map path of a tile name.
func (c *Config) NvmPath(name string) string { return NvmDir + name + ".nvm" }

// TilPath returns the point tile path of a tile name at the configured
// class.
func (c *Config) TilPath(name string) string { return c.TilPrefix() + name + cloud.TilSuffix }

// Load reads config.ini when present. Unknown keys and malformed values
// are errors; an absent file is not.
func (c *Config) Load() error {
	if !c.fs.Exists(ConfigFile) {
		return nil
	}
	data, err := c.fs.ReadFile(ConfigFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", ConfigFile, err)
	}
	return c.parse(data)
}

func (c *Config) parse(data []byte) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Split(bufio.ScanWords)
	next := func(key string) (string, error) {
		if !sc.Scan() {
			return "", fmt.Errorf("%s: missing value for %s", ConfigFile, key)
		}
		return sc.Text(), nil
	}
	intVal := func(key string) (int, error) {
		tok, err := next(key)
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(tok)
		if err != nil {
			return 0, fmt.Errorf("%s: bad value for %s: %q", ConfigFile, key, tok)
		}
		return v, nil
	}
	boolVal := func(key string) (bool, error) {
		tok, err := next(key)
		if err != nil {
			return false, err
		}
		switch tok {
		case "ON":
			return true, nil
		case "OFF":
			return false, nil
		}
		return false, fmt.Errorf("%s: bad status for %s: %q", ConfigFile, key, tok)
	}

	for sc.Scan() {
		key := sc.Text()
		var err error
		switch key {
		case "CLOUD_ACCESS":
			var tok string
			if tok, err = next(key); err == nil {
				switch tok {
				case "TOP":
					c.CloudAccess = cloud.TOP
				case "MID":
					c.CloudAccess = cloud.MID
				case "ECO":
					c.CloudAccess = cloud.ECO
				default:
					err = fmt.Errorf("%s: bad value for CLOUD_ACCESS: %q", ConfigFile, tok)
				}
			}
		case "MAX_BS_THICKNESS":
			var v int
			if v, err = intVal(key); err == nil {
				c.SetMaxBSThickness(v)
			}
		case "MIN_BS_LENGTH":
			var v int
			if v, err = intVal(key); err == nil {
				c.SetMinBSLength(v)
			}
		case "SEED_SHIFT":
			var v int
			if v, err = intVal(key); err == nil {
				c.SetSeedShift(v)
			}
		case "SEED_WIDTH":
			var v int
			if v, err = intVal(key); err == nil {
				c.SetSeedWidth(v)
			}
		case "PAD_SIZE":
			var v int
			if v, err = intVal(key); err == nil {
				err = c.SetPadSize(v)
			}
		case "BUFFER_SIZE":
			var v int
			if v, err = intVal(key); err == nil {
				err = c.SetBufferSize(v)
			}
		case "TAIL_MIN_SIZE":
			var v int
			if v, err = intVal(key); err == nil {
				c.SetTailMinSize(v)
			}
		case "RORPO":
			var on bool
			if on, err = boolVal(key); err == nil {
				c.RorpoOff = !on
			}
		case "CONNECTED":
			c.Connected, err = boolVal(key)
		case "STEP":
			var tok string
			if tok, err = next(key); err == nil {
				err = c.setStepName(tok)
			}
		case "OUT_MAP":
			c.OutMap, err = boolVal(key)
		case "BACK_DTM":
			c.BackDtm, err = boolVal(key)
		case "FALSE_COLOR":
			c.FalseColor, err = boolVal(key)
		case "VERBOSE":
			c.Verbose, err = boolVal(key)
		default:
			err = fmt.Errorf("%s: unknown key %q", ConfigFile, key)
		}
		if err != nil {
			return err
		}
	}
	return sc.Err()
}

func (c *Config) setStepName(name string) error {
	switch name {
	case "ALL":
		c.Step = StepAll
	case "SHADING":
		c.Step = StepShade
	case "RORPO":
		c.Step = StepRorpo
	case "SOBEL":
		c.Step = StepSobel
	case "FBSD":
		c.Step = StepFbsd
	case "SEEDS":
		c.Step = StepSeeds
	case "ASD":
		c.Step = StepAsd
	case "SAWING":
		c.Step = StepSawing
	default:
		return fmt.Errorf("%s: unknown step %q", ConfigFile, name)
	}
	return nil
}

// Tiles returns the path of the current tile-set file, resolved through
// tilesets/last_set.txt.
func (c *Config) Tiles() string {
	data, err := c.fs.ReadFile(TilesetDir + LastSetName + TxtSuffix)
	name := LastSetName
	if err == nil {
		fields := strings.Fields(string(data))
		if len(fields) > 0 {
			name = fields[0]
		}
	}
	return TilesetDir + name + TxtSuffix
}

// SetTiles resolves the sector to process: either an existing tile-set
// file, or the tile names collected from the command line, which are then
// written out as a new set and recorded as the last used one.
func (c *Config) SetTiles() error {
	unspec := true
	tsname := TilesetDir + c.sectorName + TxtSuffix
	if data, err := c.fs.ReadFile(tsname); err == nil {
		if c.Verbose {
			log.Printf("[Config] Using %s", tsname)
		}
		if len(strings.Fields(string(data))) > 0 {
			if c.sectorName != LastSetName {
				if err := c.writeLastSet(c.sectorName); err != nil {
					return err
				}
				unspec = false
			} else if len(c.tileNames) == 0 {
				unspec = false
			}
		}
	}
	if !unspec {
		return nil
	}
	if len(c.tileNames) == 0 {
		return fmt.Errorf("no tile specified in %s", c.sectorName)
	}
	for _, name := range c.tileNames {
		if !c.fs.Exists(c.NvmPath(name)) {
			return fmt.Errorf("unknown file %s", c.NvmPath(name))
		}
		if !c.anyTilExists(name) {
			return fmt.Errorf("unknown til file for %s", name)
		}
	}
	if c.sectorName == LastSetName {
		c.sectorName = LastTiles
	}
	if err := c.fs.MkdirAll(TilesetDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", TilesetDir, err)
	}
	var b strings.Builder
	for _, name := range c.tileNames {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	setPath := TilesetDir + c.sectorName + TxtSuffix
	if err := c.fs.WriteFile(setPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", setPath, err)
	}
	if err := c.writeLastSet(c.sectorName); err != nil {
		return err
	}
	if c.Verbose {
		log.Printf("[Config] Using %s", c.sectorName)
	}
	return nil
}

func (c *Config) writeLastSet(name string) error {
	if err := c.fs.MkdirAll(TilesetDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", TilesetDir, err)
	}
	path := TilesetDir + LastSetName + TxtSuffix
	if err := c.fs.WriteFile(path, []byte(name+"\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (c *Config) anyTilExists(name string) bool {
	for _, access := range []int{cloud.ECO, cloud.MID, cloud.TOP} {
		p := TilDir + cloud.ClassDir(access) + cloud.ClassPrefix(access) + name + cloud.TilSuffix
		if c.fs.Exists(p) {
			return true
		}
	}
	return false
}

// TileSetNames reads the resolved tile-set file.
func (c *Config) TileSetNames() ([]string, error) {
	path := TilesetDir + c.sectorName + TxtSuffix
	data, err := c.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no %s file found", path)
	}
	return strings.Fields(string(data)), nil
}
