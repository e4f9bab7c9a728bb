/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/floats"
	"k8s.io/klog/v2"

	"github.com/notargets/gogamg/InputParameters"
	"github.com/notargets/gogamg/comm"
	"github.com/notargets/gogamg/gamg"
	"github.com/notargets/gogamg/mapped"
	"github.com/notargets/gogamg/model_problems/Poisson2D"
)

// AgglomerateCmd represents the agglomerate command
var AgglomerateCmd = &cobra.Command{
	Use:   "agglomerate",
	Short: "Coarsen a partitioned 2D model problem and report every level",
	Long: `
Assembles a five point operator on an Nx by Ny grid split into row slabs over
NProcs in-process ranks, agglomerates it pairwise down the level hierarchy and
prints the global size and coefficient totals of each level.

gogamg agglomerate -I input.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
			ip  *InputParameters.GAMGParameters
		)
		if ip, err = processInput(cmd); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		if viper.GetBool("profile") {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		}
		ip.Print()
		if err = RunAgglomerate(ip, os.Stdout); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(AgglomerateCmd)
	AgglomerateCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- Nx, Ny\n\t- NProcs\n\t- Agglomerator")
	AgglomerateCmd.Flags().IntP("procs", "p", 0, "number of ranks, overrides the input file")
	AgglomerateCmd.Flags().StringP("agglomerator", "a", "", "atomic or sorted, overrides the input file")
	AgglomerateCmd.Flags().BoolP("gather", "g", false, "gather the coarsest level onto rank 0")
	AgglomerateCmd.Flags().StringP("map", "m", "", "sample mode mapping the coarsest top wall onto the bottom wall")
	_ = viper.BindPFlag("procs", AgglomerateCmd.Flags().Lookup("procs"))
	_ = viper.BindPFlag("agglomerator", AgglomerateCmd.Flags().Lookup("agglomerator"))
}

func processInput(cmd *cobra.Command) (ip *InputParameters.GAMGParameters, err error) {
	var (
		fileName string
		data     []byte
	)
	ip = InputParameters.NewGAMGParameters()
	if fileName, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
		return
	}
	if len(fileName) != 0 {
		if data, err = os.ReadFile(fileName); err != nil {
			return nil, errors.Wrap(err, "reading input parameters")
		}
		if err = ip.Parse(data); err != nil {
			return nil, err
		}
	}
	if n := viper.GetInt("procs"); n != 0 {
		ip.NProcs = n
	}
	if s := viper.GetString("agglomerator"); s != "" {
		ip.Agglomerator = s
	}
	if g, _ := cmd.Flags().GetBool("gather"); g {
		ip.GatherCoarsest = true
	}
	if mode, _ := cmd.Flags().GetString("map"); mode != "" {
		if ip.Mapping == nil {
			ip.Mapping = &mapped.Config{SamplePatch: Poisson2D.TopPatch}
		}
		ip.Mapping.Mode = mode
	}
	return ip, ip.Check()
}

// RunAgglomerate builds the hierarchy on an in-process world of ip.NProcs
// ranks. Only rank 0 writes to out.
func RunAgglomerate(ip *InputParameters.GAMGParameters, out io.Writer) (err error) {
	strategy, err := ip.Strategy()
	if err != nil {
		return
	}
	c, err := Poisson2D.NewCase(ip.Nx, ip.Ny, ip.NProcs, ip.Convection)
	if err != nil {
		return
	}
	nLevels := ip.NLevels
	if nLevels == 0 {
		nLevels = c.MaxLevels()
	}
	start := time.Now()
	w := comm.NewWorld(ip.NProcs)
	err = w.Run(func(p *comm.Proc) (err error) {
		s, err := c.NewSlab(p)
		if err != nil {
			return
		}
		if ip.Debug {
			klog.Infof("%s", s)
		}
		a, err := s.Agglomeration(strategy, nLevels, ip.ParallelDegree)
		if err != nil {
			return
		}
		solver, err := gamg.NewSolver(p, a, s.Matrix, s.Interfaces, s.Coeffs)
		if err != nil {
			return
		}
		solver.Verbose = ip.Debug
		if err = solver.Agglomerate(); err != nil {
			return
		}
		if ip.Debug {
			solver.CheckLevels()
		}
		stats := solver.Stats()
		master := p.Master(comm.WorldComm)
		if master {
			klog.V(1).Infof("agglomerated %d levels in %v", len(stats)-1, time.Since(start))
			gamg.PrintStats(out, stats)
		}
		if ip.Mapping != nil {
			if err = mapWall(p, c, s, solver, ip.Mapping, out); err != nil {
				return
			}
		}
		if !ip.GatherCoarsest {
			return
		}
		procIDs := make([]int, p.NProcs(comm.WorldComm))
		for i := range procIDs {
			procIDs[i] = i
		}
		gathered, err := gamg.GatherMatrices(p, procIDs, comm.WorldComm, solver.Level(solver.NLevels()-1))
		if err != nil || !master {
			return
		}
		for i, pm := range gathered {
			fmt.Fprintf(out, "rank %d: %s\n", procIDs[i], pm)
		}
		return
	})
	return
}

// mapWall samples the top wall of the last slab on the coarsest level and
// maps it onto the bottom wall of the first, weighting every face alike.
func mapWall(p *comm.Proc, c *Poisson2D.Case, s *Poisson2D.Slab, solver *gamg.Solver,
	cfg *mapped.Config, out io.Writer) (err error) {
	var (
		level  = solver.NLevels() - 1
		m      = solver.MatrixLevel(level)
		nx, ny = s.LevelDims(level)
	)
	mapper, err := mapped.NewMapper(cfg, nil)
	if err != nil {
		return
	}
	if mapper.SamplePatch == "" {
		mapper.SamplePatch = Poisson2D.TopPatch
	}
	if mapper.Map, err = c.WallMap(p, mapper.Mode, nx, ny, m.NFaces()); err != nil {
		return
	}
	magSf := make([]float64, mapper.Map.ConstructSize)
	floats.AddConst(1, magSf)
	values, err := mapper.MappedField(p, Poisson2D.WallSource(m.Diag, nx, ny, m.NFaces()), magSf)
	if err != nil {
		return errors.Wrap(err, "wall mapping")
	}
	if p.Master(comm.WorldComm) && len(values) > 0 {
		fmt.Fprintf(out, "mapped wall (%s): %d faces, mean %.6g\n",
			mapper.Mode, len(values), floats.Sum(values)/float64(len(values)))
	}
	return
}
