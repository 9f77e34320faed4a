package metrics

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLabels(t *testing.T) {
	assert.Equal(t, []int{0, 1, 3, 5}, Labels([]int{3, 0, 3}, []int{5, 1, 0}))
}

func TestConfusionMatrix(t *testing.T) {
	yTrue := []int{2, 0, 2, 2, 0, 1}
	yPred := []int{0, 0, 2, 2, 0, 2}

	cm, err := ConfusionMatrix(yTrue, yPred, Labels(yTrue, yPred))
	require.NoError(t, err)

	want := mat.NewDense(3, 3, []float64{
		2, 0, 0,
		0, 0, 1,
		1, 0, 2,
	})
	assert.True(t, mat.Equal(want, cm))
}

func TestConfusionMatrixLengthMismatch(t *testing.T) {
	_, err := ConfusionMatrix([]int{1}, []int{1, 2}, []int{1, 2})
	require.Error(t, err)
}

func TestReport(t *testing.T) {
	yTrue := []int{2, 0, 2, 2, 0, 1}
	yPred := []int{0, 0, 2, 2, 0, 2}

	rep, err := NewReport(yTrue, yPred, nil)
	require.NoError(t, err)
	require.Len(t, rep.Classes, 3)

	c0 := rep.Classes[0]
	assert.InDelta(t, 2.0/3, c0.Precision, 1e-9)
	assert.InDelta(t, 1.0, c0.Recall, 1e-9)
	assert.InDelta(t, 0.8, c0.F1, 1e-9)
	assert.Equal(t, 2, c0.Support)
	assert.InDelta(t, 1.0, c0.Accuracy, 1e-9)

	// class 1 is never predicted
	c1 := rep.Classes[1]
	assert.Equal(t, 0.0, c1.Precision)
	assert.Equal(t, 0.0, c1.F1)
	assert.Equal(t, 1, c1.Support)

	c2 := rep.Classes[2]
	assert.InDelta(t, 2.0/3, c2.Precision, 1e-9)
	assert.InDelta(t, 2.0/3, c2.Recall, 1e-9)
	assert.InDelta(t, 2.0/3, c2.Accuracy, 1e-9)

	assert.InDelta(t, 4.0/6, rep.Accuracy, 1e-9)
	assert.Equal(t, 6, rep.Total)
	assert.InDelta(t, (2.0/3+0+2.0/3)/3, rep.Macro.Precision, 1e-9)
	assert.InDelta(t, (2*1.0+0+3*2.0/3)/6, rep.Weighted.Recall, 1e-9)
}

func TestReportCSV(t *testing.T) {
	rep, err := NewReport([]int{0, 1, 1}, []int{0, 1, 0}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	require.Len(t, lines, 6)
	assert.Equal(t, "class,precision,recall,f1-score,support,accuracy", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0,0.5,1,"))
	assert.True(t, strings.HasPrefix(lines[2], "1,1,0.5,"))
	assert.True(t, strings.HasPrefix(lines[3], "accuracy,"))
	assert.True(t, strings.HasPrefix(lines[4], "macro avg,"))
	assert.True(t, strings.HasPrefix(lines[5], "weighted avg,"))

	assert.Contains(t, rep.String(), "weighted avg")
}

func TestSaveNPY(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cm.npy")
	require.NoError(t, SaveNPY(p, mat.NewDense(2, 2, []float64{1, 0, 0, 3})))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("\x93NUMPY")))
}

func TestDense(t *testing.T) {
	m := Dense([][]float64{{1, 2}, {3, 4}})
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 3.0, m.At(1, 0))
	assert.Nil(t, Dense(nil))
}

func TestReportFixedLabels(t *testing.T) {
	rep, err := NewReport([]int{0, 0}, []int{0, 1}, []int{0, 1, 2})
	require.NoError(t, err)
	require.Len(t, rep.Classes, 3)
	// absent class scores zero instead of dividing by zero
	assert.Equal(t, 0, rep.Classes[2].Support)
	assert.Equal(t, 0.0, rep.Classes[2].Accuracy)
	assert.InDelta(t, 0.5, rep.Classes[0].Accuracy, 1e-9)
}

func TestReportText(t *testing.T) {
	rep, err := NewReport([]int{0, 1, 1}, []int{0, 1, 0}, nil)
	require.NoError(t, err)

	want := []string{
		"                precision     recall   f1-score    support",
		"",
		"             0       0.50       1.00       0.67          1",
		"             1       1.00       0.50       0.67          2",
		"",
		"      accuracy                             0.67          3",
		"     macro avg       0.75       0.75       0.67          3",
		"  weighted avg       0.83       0.67       0.67          3",
		"",
	}
	assert.Equal(t, want, strings.Split(rep.Text(2), "\n"))

	row := strings.Split(rep.Text(4), "\n")[2]
	assert.Equal(t, "             0     0.5000     1.0000     0.6667          1", row)
}

func TestReportObservedLabelsOnly(t *testing.T) {
	yTrue := []int{0, 1, 0, 1}
	rep, err := NewReport(yTrue, yTrue, nil)
	require.NoError(t, err)
	require.Len(t, rep.Classes, 2)
	assert.InDelta(t, 1.0, rep.Macro.F1, 1e-9)
}

func TestClassAccuracy(t *testing.T) {
	acc := ClassAccuracy([]int{0, 1, 0, 1, 7}, []int{0, 1, 1, 1, 7}, 66)
	require.Len(t, acc, 66)
	assert.Equal(t, 0.5, acc[0])
	assert.Equal(t, 1.0, acc[1])
	assert.Equal(t, 1.0, acc[7])
	// never seen
	assert.Equal(t, 0.0, acc[2])
	assert.Equal(t, 0.0, acc[65])

	assert.Len(t, ClassAccuracy([]int{70}, []int{70}, 3), 3)
}
