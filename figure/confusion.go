// Package figure renders evaluation figures.
package figure

import (
	"fmt"
	"image/color"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// grid adapts a confusion matrix to plotter.GridXYZ. Row 0 is drawn at the
// top, zero cells become NaN so they render blank.
type grid struct {
	m *mat.Dense
	n int
}

func (g grid) Dims() (c, r int) { return g.n, g.n }

func (g grid) Z(c, r int) float64 {
	v := g.m.At(g.n-1-r, c)
	if v == 0 {
		return math.NaN()
	}
	return v
}

func (g grid) X(c int) float64 { return float64(c) }
func (g grid) Y(r int) float64 { return float64(r) }

// ConfusionMatrix draws cm as an annotated heat map and saves it to path.
// The colour scale saturates at vmax; labels name the rows and columns.
func ConfusionMatrix(cm *mat.Dense, labels []int, path, dset string, vmax float64) error {
	r, c := cm.Dims()
	if r != c || r == 0 {
		return fmt.Errorf("confusion matrix must be square and non-empty, got %dx%d", r, c)
	}
	if len(labels) != r {
		return fmt.Errorf("%d labels for %d classes", len(labels), r)
	}
	if vmax <= 0 {
		vmax = 10
	}
	n := r

	pal := palette.Heat(64, 1)
	colors := pal.Colors()
	hm := plotter.NewHeatMap(grid{m: cm, n: n}, pal)
	hm.Min = 0
	hm.Max = vmax
	hm.Overflow = colors[len(colors)-1]
	hm.NaN = color.White

	var xys plotter.XYs
	var text []string
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := cm.At(i, j)
			if v == 0 {
				continue
			}
			xys = append(xys, plotter.XY{X: float64(j), Y: float64(n - 1 - i)})
			text = append(text, strconv.FormatFloat(v, 'g', -1, 64))
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Confusion Matrix: %s Set", dset)
	p.Title.TextStyle.Font.Size = vg.Points(20)
	p.Y.Label.Text = "True"
	p.Y.Label.TextStyle.Font.Size = vg.Points(20)
	p.Add(hm)
	if len(xys) > 0 {
		ann, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: text})
		if err != nil {
			return err
		}
		p.Add(ann)
	}

	xt := make([]plot.Tick, n)
	yt := make([]plot.Tick, n)
	for i, l := range labels {
		s := strconv.Itoa(l)
		xt[i] = plot.Tick{Value: float64(i), Label: s}
		yt[i] = plot.Tick{Value: float64(n - 1 - i), Label: s}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xt)
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.Y.Tick.Marker = plot.ConstantTicks(yt)
	p.X.Min, p.X.Max = -0.5, float64(n)-0.5
	p.Y.Min, p.Y.Max = -0.5, float64(n)-0.5

	if err := p.Save(16*vg.Inch, 14*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
