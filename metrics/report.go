package metrics

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ClassScores are the per-class figures of a Report.
type ClassScores struct {
	Label     int
	Precision float64
	Recall    float64
	F1        float64
	Support   int
	// Accuracy is correct / support for this class.
	Accuracy float64
}

type Average struct {
	Precision, Recall, F1 float64
	Support               int
}

// Report mirrors a classification report: one row per label, then overall
// accuracy, macro and support-weighted averages. Zero divisions yield 0.
type Report struct {
	Classes  []ClassScores
	Accuracy float64
	Total    int
	Macro    Average
	Weighted Average
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// NewReport scores yPred against yTrue over labels, or over the sorted union
// of the observed labels when labels is nil.
func NewReport(yTrue, yPred, labels []int) (*Report, error) {
	if labels == nil {
		labels = Labels(yTrue, yPred)
	}
	cm, err := ConfusionMatrix(yTrue, yPred, labels)
	if err != nil {
		return nil, err
	}
	n := len(labels)
	rep := &Report{Classes: make([]ClassScores, n), Total: len(yTrue)}

	var correct float64
	for i := 0; i < n; i++ {
		tp := cm.At(i, i)
		var predicted, actual float64
		for j := 0; j < n; j++ {
			predicted += cm.At(j, i)
			actual += cm.At(i, j)
		}
		correct += tp

		p := safeDiv(tp, predicted)
		r := safeDiv(tp, actual)
		cs := ClassScores{
			Label:     labels[i],
			Precision: p,
			Recall:    r,
			F1:        safeDiv(2*p*r, p+r),
			Support:   int(actual),
			Accuracy:  r,
		}
		rep.Classes[i] = cs

		rep.Macro.Precision += cs.Precision
		rep.Macro.Recall += cs.Recall
		rep.Macro.F1 += cs.F1
		w := float64(cs.Support)
		rep.Weighted.Precision += w * cs.Precision
		rep.Weighted.Recall += w * cs.Recall
		rep.Weighted.F1 += w * cs.F1
	}
	rep.Accuracy = safeDiv(correct, float64(rep.Total))

	rep.Macro.Precision /= float64(n)
	rep.Macro.Recall /= float64(n)
	rep.Macro.F1 /= float64(n)
	rep.Macro.Support = rep.Total
	tot := float64(rep.Total)
	rep.Weighted.Precision = safeDiv(rep.Weighted.Precision, tot)
	rep.Weighted.Recall = safeDiv(rep.Weighted.Recall, tot)
	rep.Weighted.F1 = safeDiv(rep.Weighted.F1, tot)
	rep.Weighted.Support = rep.Total
	return rep, nil
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Frame lays the report out as a table with columns class, precision,
// recall, f1-score, support and accuracy. The accuracy row carries the
// overall accuracy under f1-score; averages leave the accuracy column empty.
func (r *Report) Frame() dataframe.DataFrame {
	var class, prec, rec, f1, sup, acc []string
	add := func(c, p, re, f, s, a string) {
		class = append(class, c)
		prec = append(prec, p)
		rec = append(rec, re)
		f1 = append(f1, f)
		sup = append(sup, s)
		acc = append(acc, a)
	}
	for _, c := range r.Classes {
		add(strconv.Itoa(c.Label), ff(c.Precision), ff(c.Recall), ff(c.F1), strconv.Itoa(c.Support), ff(c.Accuracy))
	}
	add("accuracy", "", "", ff(r.Accuracy), strconv.Itoa(r.Total), "")
	add("macro avg", ff(r.Macro.Precision), ff(r.Macro.Recall), ff(r.Macro.F1), strconv.Itoa(r.Macro.Support), "")
	add("weighted avg", ff(r.Weighted.Precision), ff(r.Weighted.Recall), ff(r.Weighted.F1), strconv.Itoa(r.Weighted.Support), "")

	return dataframe.New(
		series.New(class, series.String, "class"),
		series.New(prec, series.String, "precision"),
		series.New(rec, series.String, "recall"),
		series.New(f1, series.String, "f1-score"),
		series.New(sup, series.String, "support"),
		series.New(acc, series.String, "accuracy"),
	)
}

func (r *Report) WriteCSV(w io.Writer) error {
	df := r.Frame()
	if err := df.Error(); err != nil {
		return fmt.Errorf("report frame: %w", err)
	}
	return df.WriteCSV(w)
}

func (r *Report) String() string { return r.Text(3) }

// Text renders the report as aligned text with the given number of digits.
func (r *Report) Text(digits int) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', digits, 64) }
	s := fmt.Sprintf("%14s %10s %10s %10s %10s\n\n", "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		s += fmt.Sprintf("%14d %10s %10s %10s %10d\n", c.Label, f(c.Precision), f(c.Recall), f(c.F1), c.Support)
	}
	s += "\n"
	s += fmt.Sprintf("%14s %10s %10s %10s %10d\n", "accuracy", "", "", f(r.Accuracy), r.Total)
	s += fmt.Sprintf("%14s %10s %10s %10s %10d\n", "macro avg", f(r.Macro.Precision), f(r.Macro.Recall), f(r.Macro.F1), r.Macro.Support)
	s += fmt.Sprintf("%14s %10s %10s %10s %10d\n", "weighted avg", f(r.Weighted.Precision), f(r.Weighted.Recall), f(r.Weighted.F1), r.Weighted.Support)
	return s
}
