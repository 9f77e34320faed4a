package inference

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/maastricht-university/audioclf-eval/dataset"
	"github.com/maastricht-university/audioclf-eval/model"
)

// KRandomResult adds the individual outputs of every round, k x files x classes.
type KRandomResult struct {
	Result
	Rounds [][][]float32
}

// KRandom scores one randomly cropped window per file, k times over, and
// predicts the argmax of the mean class scores. Each pass over l draws fresh
// crops.
func KRandom(ctx context.Context, net model.Net, l *dataset.Loader, k int, opt Options) (*KRandomResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	p := opt.progress()
	res := &KRandomResult{Rounds: make([][][]float32, 0, k)}
	for round := 0; round < k; round++ {
		bar := addBar(p, fmt.Sprintf("k=%d/%d ", round+1, k), l.NumBatches())
		rows, err := score(ctx, net, l, bar)
		if err != nil {
			bar.Abort(false)
			p.Wait()
			return nil, err
		}
		bar.SetTotal(-1, true)
		log.WithFields(log.Fields{"round": round + 1, "files": len(rows)}).Debug("k-random round done")
		res.Rounds = append(res.Rounds, rows)
	}
	p.Wait()

	n := l.Len()
	res.Avg = make([][]float64, n)
	res.Pred = make([]int, n)
	per := make([][]float32, k)
	for i := 0; i < n; i++ {
		for r := range res.Rounds {
			per[r] = res.Rounds[r][i]
		}
		avg, err := mean(per)
		if err != nil {
			return nil, fmt.Errorf("file %d: %w", i, err)
		}
		res.Avg[i] = avg
		res.Pred[i] = argmax(avg)
	}
	return res, nil
}
