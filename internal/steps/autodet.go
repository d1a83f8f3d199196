package steps

import (
	"fmt"
	"strings"
)

// DetectorStatus is the human-readable parameter snapshot written next to
// the road map after an ASD run.
type DetectorStatus struct {
	Version        string
	Tile           string
	MaxBSThickness int
	MinBSLength    int
	SeedShift      int
	SeedWidth      int
	PadSize        int
	BufferSize     int
	Connected      bool

	CloudAccess int

	InitialDetection     bool
	PlateauLackTolerance int
	PlateauMaxTilt       int
	PlateauMinLength     float64
	ThicknessTolerance   float64
	SlopeTolerance       float64
	SideShiftTolerance   float64
	MaxShiftLength       float64
	TailMinSize          int
}

// SaveDetectorStatus writes steps/autodet.ini.
func (s *Store) SaveDetectorStatus(st DetectorStatus) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[AMREL]\n")
	fmt.Fprintf(&b, "Version=%s\n", st.Version)
	fmt.Fprintf(&b, "Tile=%s\n", st.Tile)
	fmt.Fprintf(&b, "MaxBSThickness=%d\n", st.MaxBSThickness)
	fmt.Fprintf(&b, "MinBSLength=%d\n", st.MinBSLength)
	fmt.Fprintf(&b, "SeedShift=%d\n", st.SeedShift)
	fmt.Fprintf(&b, "SeedWidth=%d\n", st.SeedWidth)
	fmt.Fprintf(&b, "PadSize=%d\n", st.PadSize)
	fmt.Fprintf(&b, "BufferSize=%d\n", st.BufferSize)
	fmt.Fprintf(&b, "Connected=%t\n\n", st.Connected)

	fmt.Fprintf(&b, "[ASD]\n")
	fmt.Fprintf(&b, "CloudAccess=%d\n", st.CloudAccess)
	fmt.Fprintf(&b, "DetectionMode=1\n\n")

	fmt.Fprintf(&b, "[CTrack]\n")
	fmt.Fprintf(&b, "InitialDetection=%t\n", st.InitialDetection)
	fmt.Fprintf(&b, "PlateauLackTolerance=%d\n", st.PlateauLackTolerance)
	fmt.Fprintf(&b, "PlateauMaxTilt=%d\n", st.PlateauMaxTilt)
	fmt.Fprintf(&b, "PlateauMinLength=%g\n", st.PlateauMinLength)
	fmt.Fprintf(&b, "MaxThicknessShift=%g\n", st.ThicknessTolerance)
	fmt.Fprintf(&b, "MaxSlopeShift=%g\n", st.SlopeTolerance)
	fmt.Fprintf(&b, "MaxPositionShift=%g\n", st.SideShiftTolerance)
	fmt.Fprintf(&b, "MaxCenterShift=%g\n", st.MaxShiftLength)
	fmt.Fprintf(&b, "MinTailLength=%d\n", st.TailMinSize)

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	if err := s.fs.WriteFile(s.Path(AutodetFile), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.Path(AutodetFile), err)
	}
	return nil
}
