package mapped

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gogamg/comm"
)

func TestSampleModes(t *testing.T) {
	for label, mode := range SampleModeNames {
		m, err := NewSampleMode(label)
		require.NoError(t, err)
		assert.Equal(t, mode, m)
	}
	m, err := NewSampleMode("nearestPatchFaceAMI")
	require.NoError(t, err)
	assert.Equal(t, "nearestPatchFaceAMI", m.String())
	_, err = NewSampleMode("nearestPoint")
	assert.Error(t, err)
	assert.Equal(t, "SampleMode(9)", SampleMode(9).String())
}

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(`
sampleMode: nearestPatchFace
samplePatch: inlet
setAverage: true
average: 2.5
`))
	require.NoError(t, err)
	m, err := NewMapper(c, nil)
	require.NoError(t, err)
	assert.Equal(t, NearestPatchFace, m.Mode)
	assert.Equal(t, "inlet", m.SamplePatch)
	assert.True(t, m.SetAverage)
	assert.Equal(t, 2.5, m.Average)

	_, err = ParseConfig([]byte("sampleMode: nearestCell\nsetAverage: true\n"))
	assert.Error(t, err)
	_, err = ParseConfig([]byte("sampleMode: nearestVertex\n"))
	assert.Error(t, err)
	_, err = NewMapper(&Config{Mode: "nearestVertex"}, nil)
	assert.Error(t, err)
}

func serial(t *testing.T, m *Mapper, src *Source, magSf []float64) (values []float64, err error) {
	p := comm.NewWorld(1).Proc(0)
	values, err = m.MappedField(p, src, magSf)
	assert.Equal(t, 1, p.MsgType())
	return
}

func TestLocalSampling(t *testing.T) {
	src := &Source{
		CellValues: []float64{1, 2, 3},
		Patches: []Patch{
			{Name: "inlet", Start: 4, Values: []float64{10, 20}},
			{Name: "outlet", Start: 6, Values: []float64{30, 40, 50}},
		},
		NFaces: 9,
	}
	{
		m := &Mapper{Mode: NearestCell, Map: LocalMap(comm.WorldComm, 0, 1, 3)}
		values, err := serial(t, m, src, []float64{1, 1, 1})
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2, 3}, values)
	}
	{
		m := &Mapper{Mode: NearestPatchFaceAMI, SamplePatch: "outlet", Map: LocalMap(comm.WorldComm, 0, 1, 3)}
		values, err := serial(t, m, src, []float64{1, 1, 1})
		require.NoError(t, err)
		assert.Equal(t, []float64{30, 40, 50}, values)

		m.SamplePatch = "wall"
		_, err = serial(t, m, src, []float64{1, 1, 1})
		assert.Error(t, err)
	}
	{ // internal faces sample as zero
		m := &Mapper{Mode: NearestFace, Map: LocalMap(comm.WorldComm, 0, 1, 9)}
		values, err := serial(t, m, src, make([]float64, 9))
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0, 0, 0, 10, 20, 30, 40, 50}, values)

		src.NFaces = 8
		_, err = serial(t, m, src, make([]float64, 8))
		assert.Error(t, err)
	}
	{
		m := &Mapper{Mode: SampleMode(7), Map: LocalMap(comm.WorldComm, 0, 1, 3)}
		_, err := serial(t, m, src, []float64{1, 1, 1})
		assert.Error(t, err)
	}
	{ // patch size mismatch
		m := &Mapper{Mode: NearestCell, Map: LocalMap(comm.WorldComm, 0, 1, 3)}
		_, err := serial(t, m, src, []float64{1, 1})
		assert.Error(t, err)
	}
}

func TestSetAverage(t *testing.T) {
	var (
		src   = &Source{CellValues: []float64{1, 2, 3}}
		magSf = []float64{1, 1, 2}
		dm    = LocalMap(comm.WorldComm, 0, 1, 3)
	)
	// area weighted average (1+2+6)/4 = 2.25, more than half of 4: rescale
	m := &Mapper{Mode: NearestCell, Map: dm, SetAverage: true, Average: 4}
	values, err := serial(t, m, src, magSf)
	require.NoError(t, err)
	assert.True(t, floats.EqualApprox([]float64{4 / 2.25, 8 / 2.25, 12 / 2.25}, values, 1e-14))
	assert.InDelta(t, 4, floats.Dot(magSf, values)/floats.Sum(magSf), 1e-14)

	// 2.25 is less than half of 10: shift
	m.Average = 10
	values, err = serial(t, m, src, magSf)
	require.NoError(t, err)
	assert.True(t, floats.EqualApprox([]float64{8.75, 9.75, 10.75}, values, 1e-14))
	// the source is never modified
	assert.Equal(t, []float64{1, 2, 3}, src.CellValues)
}

// Two ranks each own two cells; each rank's patch samples one cell of its
// own and one of the other rank, in crossed order.
func TestDistributeAcrossRanks(t *testing.T) {
	var (
		w       = comm.NewWorld(2)
		results = make([][]float64, 2)
	)
	err := w.Run(func(p *comm.Proc) error {
		var (
			me    = p.MyProcNo(comm.WorldComm)
			other = 1 - me
			sub   = make([][]int, 2)
			cons  = make([][]int, 2)
		)
		sub[me], cons[me] = []int{0}, []int{1}
		sub[other], cons[other] = []int{1}, []int{0}
		dm, err := NewDistributeMap(comm.WorldComm, 2, sub, cons)
		if err != nil {
			return err
		}
		m := &Mapper{Mode: NearestCell, Map: dm, SetAverage: true, Average: 10}
		src := &Source{CellValues: []float64{float64(10*me + 1), float64(10*me + 2)}}
		results[me], err = m.MappedField(p, src, []float64{1, 1})
		return err
	})
	require.NoError(t, err)
	// before the average: rank 0 gets [12, 1], rank 1 gets [2, 11];
	// global average 6.5 is more than half of 10, so everything scales
	scale := 10 / 6.5
	assert.True(t, floats.EqualApprox([]float64{12 * scale, 1 * scale}, results[0], 1e-12))
	assert.True(t, floats.EqualApprox([]float64{2 * scale, 11 * scale}, results[1], 1e-12))
}

func TestDistributeMapChecks(t *testing.T) {
	_, err := NewDistributeMap(comm.WorldComm, 2, [][]int{{0}}, [][]int{{0}, {1}})
	assert.Error(t, err)
	_, err = NewDistributeMap(comm.WorldComm, 2, [][]int{{0}}, [][]int{{2}})
	assert.Error(t, err)

	p := comm.NewWorld(1).Proc(0)
	dm, err := NewDistributeMap(comm.WorldComm, 1, [][]int{{3}}, [][]int{{0}})
	require.NoError(t, err)
	_, err = dm.Distribute(p, []float64{1})
	assert.Error(t, err)
	dm, err = NewDistributeMap(comm.WorldComm, 1, [][]int{{0}, {0}}, [][]int{{0}, {0}})
	require.NoError(t, err)
	_, err = dm.Distribute(p, []float64{1})
	assert.Error(t, err, "map covers more ranks than the communicator")
	dm, err = NewDistributeMap(comm.WorldComm, 2, [][]int{{0}}, [][]int{{0, 1}})
	require.NoError(t, err)
	assert.Panics(t, func() { _, _ = dm.Distribute(p, []float64{1}) })
}
