package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/notargets/gogamg/agglomeration"
	"github.com/notargets/gogamg/mapped"
)

// Parameters obtained from the YAML input file
type GAMGParameters struct {
	Title          string  `json:"Title"`
	Agglomerator   string  `json:"Agglomerator"`   // atomic or sorted
	NProcs         int     `json:"NProcs"`         // ranks of the in-process world
	ParallelDegree int     `json:"ParallelDegree"` // workers per rank, 0 = one per CPU
	NLevels        int     `json:"NLevels"`        // coarse levels, 0 = down to one cell per rank
	Nx             int     `json:"Nx"`
	Ny             int     `json:"Ny"`
	Convection     float64 `json:"Convection"`
	GatherCoarsest bool    `json:"GatherCoarsest"` // collect the coarsest level on rank 0
	Debug          bool    `json:"Debug"`

	// Map the top wall of the coarsest level onto the bottom wall, nil = off
	Mapping *mapped.Config `json:"Mapping"`
}

func NewGAMGParameters() *GAMGParameters {
	return &GAMGParameters{
		Title:        "GAMG agglomeration",
		Agglomerator: "sorted",
		NProcs:       1,
		Nx:           64,
		Ny:           64,
	}
}

func (ip *GAMGParameters) Parse(data []byte) (err error) {
	if err = yaml.Unmarshal(data, ip); err != nil {
		return errors.Wrap(err, "parsing GAMG parameters")
	}
	return ip.Check()
}

func (ip *GAMGParameters) Strategy() (agglomeration.Strategy, error) {
	return agglomeration.NewStrategy(ip.Agglomerator)
}

func (ip *GAMGParameters) Check() (err error) {
	if _, err = ip.Strategy(); err != nil {
		return
	}
	switch {
	case ip.NProcs < 1:
		err = errors.Errorf("NProcs must be at least 1, have %d", ip.NProcs)
	case ip.ParallelDegree < 0:
		err = errors.Errorf("ParallelDegree must not be negative, have %d", ip.ParallelDegree)
	case ip.NLevels < 0:
		err = errors.Errorf("NLevels must not be negative, have %d", ip.NLevels)
	case ip.Nx < 1 || ip.Ny < ip.NProcs:
		err = errors.Errorf("a %d x %d grid cannot be split over %d ranks", ip.Nx, ip.Ny, ip.NProcs)
	case ip.Convection < 0:
		err = errors.Errorf("Convection must not be negative, have %g", ip.Convection)
	case ip.Mapping != nil:
		err = errors.Wrap(ip.Mapping.Check(), "Mapping")
	}
	return
}

func (ip *GAMGParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t\t\t= Agglomerator\n", ip.Agglomerator)
	fmt.Printf("[%d x %d]\t\t= Grid\n", ip.Nx, ip.Ny)
	fmt.Printf("%8.5f\t\t= Convection\n", ip.Convection)
	fmt.Printf("[%d]\t\t\t\t= Ranks\n", ip.NProcs)
	fmt.Printf("[%d]\t\t\t\t= Parallel Degree\n", ip.ParallelDegree)
	if ip.Mapping != nil {
		fmt.Printf("[%s]\t\t= Wall Mapping\n", ip.Mapping.Mode)
	}
	if ip.NLevels == 0 {
		fmt.Printf("[all]\t\t\t\t= Coarse Levels\n")
	} else {
		fmt.Printf("[%d]\t\t\t\t= Coarse Levels\n", ip.NLevels)
	}
}
