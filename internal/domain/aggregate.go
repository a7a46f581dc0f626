package domain

// DefaultFill marks a composite cell without a qualifying mean.
const DefaultFill = -999.9

// Policy decides which accumulated counts yield a mean.
type Policy interface {
	Accepts(count int) bool
	FillValue() float64
}

// SimpleMean accepts any cell with at least one valid sample.
type SimpleMean struct {
	Fill float64
}

func (p SimpleMean) Accepts(count int) bool { return count > 0 }
func (p SimpleMean) FillValue() float64     { return p.Fill }

// GatedMean accepts a cell only when exactly Window valid samples contributed.
// Partially covered periods are rejected rather than estimated.
type GatedMean struct {
	Fill   float64
	Window int
}

func (p GatedMean) Accepts(count int) bool { return count == p.Window }
func (p GatedMean) FillValue() float64     { return p.Fill }

// Accumulator holds running sums and valid-sample counts for one variable
// over periods x cells.
type Accumulator struct {
	periods int
	cells   int
	sum     []float64
	count   []int32
}

// NewAccumulator allocates an accumulator for the given number of periods and
// cells per period.
func NewAccumulator(periods, cells int) *Accumulator {
	return &Accumulator{
		periods: periods,
		cells:   cells,
		sum:     make([]float64, periods*cells),
		count:   make([]int32, periods*cells),
	}
}

// Accumulate adds one sample. Fill samples are ignored.
func (a *Accumulator) Accumulate(period, cell int, value float64, isFill bool) {
	if isFill {
		return
	}
	k := period*a.cells + cell
	a.sum[k] += value
	a.count[k]++
}

// AccumulateMean folds in a mean that was already computed over n samples.
func (a *Accumulator) AccumulateMean(period, cell int, mean float64, n int) {
	if n <= 0 {
		return
	}
	k := period*a.cells + cell
	a.sum[k] += mean * float64(n)
	a.count[k] += int32(n) //nolint:gosec // counts are bounded by the number of contributing days
}

// Finalize computes the per-cell means under policy. Counts are reported as
// accumulated, whether or not the policy accepted them.
func (a *Accumulator) Finalize(policy Policy) Field {
	f := Field{
		Values: make([]float64, len(a.sum)),
		Counts: make([]int32, len(a.count)),
		Cells:  a.cells,
		Policy: policy,
	}
	copy(f.Counts, a.count)
	for k, n := range a.count {
		if policy.Accepts(int(n)) {
			f.Values[k] = a.sum[k] / float64(n)
		} else {
			f.Values[k] = policy.FillValue()
		}
	}
	return f
}

// Field is the finalized output of one variable over one row, indexed
// [period*Cells + cell].
type Field struct {
	Values []float64
	Counts []int32
	Cells  int
	Policy Policy
}

// Value returns the finalized value at (period, cell).
func (f Field) Value(period, cell int) float64 {
	return f.Values[period*f.Cells+cell]
}

// Count returns the number of valid samples at (period, cell).
func (f Field) Count(period, cell int) int {
	return int(f.Counts[period*f.Cells+cell])
}

// Missing reports whether (period, cell) has no qualifying mean.
func (f Field) Missing(period, cell int) bool {
	return !f.Policy.Accepts(f.Count(period, cell))
}

// RowAggregator keeps one independent Accumulator per tracked variable for a
// single latitude row.
type RowAggregator struct {
	names []string
	accs  map[string]*Accumulator
}

// NewRowAggregator creates accumulators for each named variable.
func NewRowAggregator(names []string, periods, cells int) *RowAggregator {
	r := &RowAggregator{
		names: append([]string(nil), names...),
		accs:  make(map[string]*Accumulator, len(names)),
	}
	for _, n := range names {
		r.accs[n] = NewAccumulator(periods, cells)
	}
	return r
}

// Variable returns the accumulator for name, or nil if it is not tracked.
func (r *RowAggregator) Variable(name string) *Accumulator {
	return r.accs[name]
}

// Finalize returns one Field per variable, in the order the variables were
// given to NewRowAggregator.
func (r *RowAggregator) Finalize(policy Policy) []Field {
	fields := make([]Field, len(r.names))
	for i, n := range r.names {
		fields[i] = r.accs[n].Finalize(policy)
	}
	return fields
}

// AggregatedRow is a finalized latitude row handed to a loader.
type AggregatedRow struct {
	Index   int
	Lat     float64
	Grid    GridSpec
	Periods int
	Names   []string
	Fields  []Field
}
