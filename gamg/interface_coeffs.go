package gamg

import (
	"github.com/pkg/errors"

	"github.com/notargets/gogamg/interfaces"
	"github.com/notargets/gogamg/ldu"
)

// agglomerateInterfaceCoefficients builds the coarse field of every interface
// present on the fine level and restricts its boundary and internal
// coefficients onto the coarse patch faces. Absent fine interfaces stay absent
// on the coarse level.
func (s *Solver) agglomerateInterfaceCoefficients(fineLevelIndex int,
	coarseInterfaces []*interfaces.Interface) (fields []interfaces.Field, coeffs ldu.CoeffSets, err error) {
	var (
		l          = s.Agglomeration.Level(fineLevelIndex)
		kernel     = s.Agglomeration.Kernel()
		fineFields = s.levels[fineLevelIndex].Interfaces
		fineCoeffs = s.levels[fineLevelIndex].Coeffs
	)
	fields = make([]interfaces.Field, len(fineFields))
	coeffs = ldu.NewCoeffSets(len(fineFields))
	for inti, fineField := range fineFields {
		if fineField == nil {
			continue
		}
		var coarse *interfaces.Interface
		if inti < len(coarseInterfaces) {
			coarse = coarseInterfaces[inti]
		}
		if fields[inti], err = interfaces.New(coarse, fineField); err != nil {
			return nil, nil, errors.Wrapf(err, "interface %d", inti)
		}
		var (
			restrict = l.PatchFaceRestrict[inti]
			cs       = ldu.NewCoeffSet(l.NPatchFaces[inti])
		)
		kernel.RestrictField(cs.Boundary, fineCoeffs[inti].Boundary, restrict)
		kernel.RestrictField(cs.Internal, fineCoeffs[inti].Internal, restrict)
		coeffs[inti] = cs
	}
	return
}
