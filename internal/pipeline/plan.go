package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/argovis/altimetry-etl/internal/domain"
)

// TimestampsVariable holds the day offset of every time step of a composite.
const TimestampsVariable = "timestamps"

// PlanFiles returns one period per time step of each composite file, in file
// order. Period timestamps come from the file's day offsets.
func PlanFiles(ctx context.Context, source Source, files []string, ti domain.TimeIndexer) ([]domain.Period, error) {
	var periods []domain.Period
	for _, id := range files {
		f, err := source.Open(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", id, err)
		}
		offsets, err := f.ReadSeries(TimestampsVariable)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		if len(offsets) != f.Times() {
			return nil, fmt.Errorf("%s: %d timestamps for %d time steps", id, len(offsets), f.Times())
		}
		for t, off := range offsets {
			periods = append(periods, domain.Period{
				Timestamp: ti.Date(int(math.Round(off))),
				Files:     []domain.FileRef{{ID: id, Time: t}},
			})
		}
	}
	return periods, nil
}
