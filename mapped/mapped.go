// Package mapped samples values for a patch from another part of the mesh,
// possibly held by other ranks, and optionally pins their area weighted
// average.
package mapped

import (
	"fmt"
	"math"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"k8s.io/klog/v2"

	"github.com/notargets/gogamg/comm"
)

type SampleMode uint8

const (
	NearestCell SampleMode = iota
	NearestPatchFace
	NearestPatchFaceAMI
	NearestFace
)

var SampleModeNames = map[string]SampleMode{
	"nearestcell":         NearestCell,
	"nearestpatchface":    NearestPatchFace,
	"nearestpatchfaceami": NearestPatchFaceAMI,
	"nearestface":         NearestFace,
}

func NewSampleMode(label string) (mode SampleMode, err error) {
	var ok bool
	if mode, ok = SampleModeNames[strings.ToLower(label)]; !ok {
		err = errors.Errorf("unknown sampling mode %q", label)
	}
	return
}

func (m SampleMode) String() string {
	switch m {
	case NearestCell:
		return "nearestCell"
	case NearestPatchFace:
		return "nearestPatchFace"
	case NearestPatchFaceAMI:
		return "nearestPatchFaceAMI"
	case NearestFace:
		return "nearestFace"
	}
	return fmt.Sprintf("SampleMode(%d)", int(m))
}

// Patch is one boundary patch of the sampled mesh; its faces occupy
// [Start, Start+len(Values)) in the mesh face numbering.
type Patch struct {
	Name   string
	Start  int
	Values []float64
}

// Source is the sampled side of the mapping, local to the calling rank.
type Source struct {
	CellValues []float64
	Patches    []Patch
	NFaces     int
}

func (s *Source) findPatch(name string) int {
	for i := range s.Patches {
		if s.Patches[i].Name == name {
			return i
		}
	}
	return -1
}

type Config struct {
	Mode        string   `json:"sampleMode"`
	SamplePatch string   `json:"samplePatch"`
	SetAverage  bool     `json:"setAverage"`
	Average     *float64 `json:"average"`
}

// ParseConfig reads the mapping controls of a patch from YAML.
func ParseConfig(data []byte) (c *Config, err error) {
	c = &Config{}
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "reading mapped patch controls")
	}
	if err = c.Check(); err != nil {
		return nil, err
	}
	return
}

func (c *Config) Check() (err error) {
	if _, err = NewSampleMode(c.Mode); err != nil {
		return
	}
	if c.SetAverage && c.Average == nil {
		return errors.New("setAverage requires an average")
	}
	return
}

type Mapper struct {
	Mode        SampleMode
	SamplePatch string
	Map         *DistributeMap
	SetAverage  bool
	Average     float64
}

func NewMapper(c *Config, dm *DistributeMap) (m *Mapper, err error) {
	m = &Mapper{
		SamplePatch: c.SamplePatch,
		Map:         dm,
		SetAverage:  c.SetAverage,
	}
	if m.Mode, err = NewSampleMode(c.Mode); err != nil {
		return nil, err
	}
	if c.Average != nil {
		m.Average = *c.Average
	}
	return
}

// MappedField collects the sampled values for a patch with face areas magSf.
// It runs under a scratch tag, so it can be called while coupled boundary
// exchanges are pending, and every rank of the map's communicator must
// call it.
func (m *Mapper) MappedField(p *comm.Proc, src *Source, magSf []float64) (values []float64, err error) {
	defer p.PushMsgType(1)()

	var sample []float64
	switch m.Mode {
	case NearestCell:
		sample = src.CellValues
	case NearestPatchFace, NearestPatchFaceAMI:
		pi := src.findPatch(m.SamplePatch)
		if pi < 0 {
			return nil, errors.Errorf("unable to find sample patch %q", m.SamplePatch)
		}
		sample = src.Patches[pi].Values
	case NearestFace:
		sample = make([]float64, src.NFaces)
		for _, patch := range src.Patches {
			if patch.Start < 0 || patch.Start+len(patch.Values) > src.NFaces {
				return nil, errors.Errorf("patch %q faces [%d, %d) outside the %d mesh faces",
					patch.Name, patch.Start, patch.Start+len(patch.Values), src.NFaces)
			}
			copy(sample[patch.Start:], patch.Values)
		}
	default:
		return nil, errors.Errorf("unknown sampling mode %v", m.Mode)
	}
	if values, err = m.Map.Distribute(p, sample); err != nil {
		return nil, errors.Wrapf(err, "%s sampling", m.Mode)
	}
	if len(values) != len(magSf) {
		return nil, errors.Errorf("mapped %d values onto a patch of %d faces", len(values), len(magSf))
	}
	if m.SetAverage {
		m.setAverage(p, values, magSf)
	}
	return
}

// setAverage rescales values to the target average when the magnitude of
// their current average exceeds half the target's, and shifts them otherwise.
func (m *Mapper) setAverage(p *comm.Proc, values, magSf []float64) {
	var (
		c       = m.Map.Comm
		average = comm.GSumProd(p, c, magSf, values) / comm.GSum(p, c, magSf)
	)
	if math.Abs(average)/math.Abs(m.Average) > 0.5 {
		floats.Scale(math.Abs(m.Average)/math.Abs(average), values)
	} else {
		floats.AddConst(m.Average-average, values)
	}
	klog.V(2).Infof("mapped average %g set to %g", average, m.Average)
}
