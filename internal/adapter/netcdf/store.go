// Package netcdf reads gridded altimetry files and writes weekly composites
// through the netCDF C library.
package netcdf

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	cdf "github.com/fhs/go-netcdf/netcdf"

	"github.com/argovis/altimetry-etl/internal/domain"
	"github.com/argovis/altimetry-etl/internal/pipeline"
)

var (
	latitudeNames  = []string{"latitude", "lat"}
	longitudeNames = []string{"longitude", "lon"}
)

// Store opens files under a directory and keeps at most a fixed number of
// them open, closing the least recently used.
type Store struct {
	dir    string
	logger *slog.Logger
	cache  *handleCache
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, openFiles int, logger *slog.Logger) *Store {
	s := &Store{dir: dir, logger: logger}
	s.cache = newHandleCache(openFiles, func(f *File) {
		if err := f.Close(); err != nil {
			logger.Warn("close evicted file", "path", f.path, "error", err)
		}
	})
	return s
}

// Open returns the file id, relative to the store directory unless absolute.
func (s *Store) Open(ctx context.Context, id string) (pipeline.SourceFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := id
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, id)
	}
	if f, ok := s.cache.get(path); ok {
		return f, nil
	}

	f, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("opened source file", "path", path, "grid", f.grid.String(), "times", f.times)

	cached, inserted := s.cache.put(path, f)
	if !inserted {
		_ = f.Close()
	}
	return cached, nil
}

// Reserve keeps at least n files open, so one period's files stay cached
// across rows.
func (s *Store) Reserve(n int) {
	s.cache.reserve(n)
}

// Close closes every file still open.
func (s *Store) Close() error {
	s.cache.purge()
	return nil
}

// File is one open netCDF dataset with a regular latitude/longitude grid.
type File struct {
	path  string
	ds    cdf.Dataset
	grid  domain.GridSpec
	times int

	mu   sync.Mutex
	vars map[string]*variable
}

type variable struct {
	v       cdf.Var
	typ     cdf.Type
	shape   []int
	fill    float64
	hasFill bool
	scale   float64
	offset  float64
}

// OpenFile opens path read-only and derives its grid from the coordinate
// axes. A file without a time dimension has a single time step.
func OpenFile(path string) (*File, error) {
	ds, err := cdf.OpenFile(path, cdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	f := &File{path: path, ds: ds, times: 1, vars: make(map[string]*variable)}

	lats, err := f.axis(latitudeNames)
	if err != nil {
		_ = ds.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	lons, err := f.axis(longitudeNames)
	if err != nil {
		_ = ds.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.grid, err = domain.GridFromAxes(lats, lons); err != nil {
		_ = ds.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if dim, err := ds.Dim("time"); err == nil {
		n, err := dim.Len()
		if err != nil {
			_ = ds.Close()
			return nil, fmt.Errorf("%s: time dimension: %w", path, err)
		}
		f.times = int(n) //nolint:gosec // dimension lengths fit in int
	}
	return f, nil
}

func (f *File) Path() string          { return f.path }
func (f *File) Grid() domain.GridSpec { return f.grid }
func (f *File) Times() int            { return f.times }

// Close releases the underlying dataset.
func (f *File) Close() error {
	return f.ds.Close()
}

// ReadRow reads latitude row lat of name at time step t. Variables shaped
// [time][lat][lon] and [lat][lon] are supported.
func (f *File) ReadRow(name string, t, lat int) (domain.RawRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.variable(name)
	if err != nil {
		return domain.RawRow{}, err
	}

	var start, count []uint64
	switch len(v.shape) {
	case 3:
		if t < 0 || t >= v.shape[0] || lat < 0 || lat >= v.shape[1] {
			return domain.RawRow{}, fmt.Errorf("%s: index (%d, %d) outside %v", name, t, lat, v.shape)
		}
		start = []uint64{uint64(t), uint64(lat), 0}
		count = []uint64{1, 1, uint64(v.shape[2])}
	case 2:
		if t != 0 || lat < 0 || lat >= v.shape[0] {
			return domain.RawRow{}, fmt.Errorf("%s: index (%d, %d) outside %v", name, t, lat, v.shape)
		}
		start = []uint64{uint64(lat), 0}
		count = []uint64{1, uint64(v.shape[1])}
	default:
		return domain.RawRow{}, fmt.Errorf("%s: want 2 or 3 dimensions, got %d", name, len(v.shape))
	}

	values, err := readSlice(v.v, v.typ, v.shape[len(v.shape)-1], start, count)
	if err != nil {
		return domain.RawRow{}, fmt.Errorf("read %s row %d at time %d: %w", name, lat, t, err)
	}
	return domain.RawRow{
		Values:  values,
		Fill:    v.fill,
		HasFill: v.hasFill,
		Scale:   v.scale,
		Offset:  v.offset,
	}, nil
}

// ReadSeries reads a whole one-dimensional variable, unscaled.
func (f *File) ReadSeries(name string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.variable(name)
	if err != nil {
		return nil, err
	}
	if len(v.shape) != 1 {
		return nil, fmt.Errorf("%s: want 1 dimension, got %d", name, len(v.shape))
	}
	n := v.shape[0]
	out, err := readSlice(v.v, v.typ, n, []uint64{0}, []uint64{uint64(n)}) //nolint:gosec // dimension lengths are non-negative
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return out, nil
}

// Attribute returns attribute name of variable varName, or the global
// attribute when varName is empty.
func (f *File) Attribute(varName, name string) (domain.AttrValue, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if varName == "" {
		return readAttr(f.ds.Attr(name))
	}
	v, err := f.ds.Var(varName)
	if err != nil {
		return domain.AttrValue{}, false
	}
	return readAttr(v.Attr(name))
}

func (f *File) axis(names []string) ([]float64, error) {
	for _, name := range names {
		if _, err := f.ds.Var(name); err != nil {
			continue
		}
		v, err := f.variable(name)
		if err != nil {
			return nil, err
		}
		if len(v.shape) != 1 {
			return nil, fmt.Errorf("axis %s has %d dimensions", name, len(v.shape))
		}
		n := v.shape[0]
		return readSlice(v.v, v.typ, n, []uint64{0}, []uint64{uint64(n)}) //nolint:gosec // dimension lengths are non-negative
	}
	return nil, fmt.Errorf("no coordinate axis among %v: %w", names, domain.ErrVariableNotFound)
}

// variable resolves and caches the layout and packing of name.
func (f *File) variable(name string) (*variable, error) {
	if v, ok := f.vars[name]; ok {
		return v, nil
	}
	nv, err := f.ds.Var(name)
	if err != nil {
		return nil, fmt.Errorf("%s in %s: %w", name, f.path, domain.ErrVariableNotFound)
	}
	typ, err := nv.Type()
	if err != nil {
		return nil, fmt.Errorf("%s type: %w", name, err)
	}
	dims, err := nv.Dims()
	if err != nil {
		return nil, fmt.Errorf("%s dimensions: %w", name, err)
	}
	shape := make([]int, len(dims))
	for i, d := range dims {
		n, err := d.Len()
		if err != nil {
			return nil, fmt.Errorf("%s dimension %d: %w", name, i, err)
		}
		shape[i] = int(n) //nolint:gosec // dimension lengths fit in int
	}

	v := &variable{v: nv, typ: typ, shape: shape, scale: 1}
	for _, key := range []string{"_FillValue", "missing_value"} {
		if a, ok := readAttr(nv.Attr(key)); ok && a.Kind == domain.AttrNumbers && len(a.Numbers) > 0 {
			v.fill, v.hasFill = a.Numbers[0], true
			break
		}
	}
	if a, ok := readAttr(nv.Attr("scale_factor")); ok && a.Kind == domain.AttrNumbers && len(a.Numbers) > 0 {
		v.scale = a.Numbers[0]
	}
	if a, ok := readAttr(nv.Attr("add_offset")); ok && a.Kind == domain.AttrNumbers && len(a.Numbers) > 0 {
		v.offset = a.Numbers[0]
	}
	f.vars[name] = v
	return v, nil
}

// readSlice reads a hyperslab of n values as float64 whatever the stored type.
func readSlice(v cdf.Var, typ cdf.Type, n int, start, count []uint64) ([]float64, error) {
	out := make([]float64, n)
	switch typ {
	case cdf.DOUBLE:
		if err := v.ReadFloat64Slice(out, start, count); err != nil {
			return nil, err
		}
	case cdf.FLOAT:
		buf := make([]float32, n)
		if err := v.ReadFloat32Slice(buf, start, count); err != nil {
			return nil, err
		}
		for i, x := range buf {
			out[i] = float64(x)
		}
	case cdf.INT:
		buf := make([]int32, n)
		if err := v.ReadInt32Slice(buf, start, count); err != nil {
			return nil, err
		}
		for i, x := range buf {
			out[i] = float64(x)
		}
	case cdf.SHORT:
		buf := make([]int16, n)
		if err := v.ReadInt16Slice(buf, start, count); err != nil {
			return nil, err
		}
		for i, x := range buf {
			out[i] = float64(x)
		}
	case cdf.INT64:
		buf := make([]int64, n)
		if err := v.ReadInt64Slice(buf, start, count); err != nil {
			return nil, err
		}
		for i, x := range buf {
			out[i] = float64(x)
		}
	default:
		return nil, fmt.Errorf("unsupported variable type %v", typ)
	}
	return out, nil
}

// readAttr reads a text or numeric attribute. Missing or empty attributes
// report false.
func readAttr(a cdf.Attr) (domain.AttrValue, bool) {
	n, err := a.Len()
	if err != nil || n == 0 {
		return domain.AttrValue{}, false
	}
	typ, err := a.Type()
	if err != nil {
		return domain.AttrValue{}, false
	}

	nums := make([]float64, n)
	switch typ {
	case cdf.CHAR:
		buf := make([]byte, n)
		if err := a.ReadBytes(buf); err != nil {
			return domain.AttrValue{}, false
		}
		return domain.TextAttr(string(buf)), true
	case cdf.DOUBLE:
		if err := a.ReadFloat64s(nums); err != nil {
			return domain.AttrValue{}, false
		}
	case cdf.FLOAT:
		buf := make([]float32, n)
		if err := a.ReadFloat32s(buf); err != nil {
			return domain.AttrValue{}, false
		}
		for i, x := range buf {
			nums[i] = float64(x)
		}
	case cdf.INT:
		buf := make([]int32, n)
		if err := a.ReadInt32s(buf); err != nil {
			return domain.AttrValue{}, false
		}
		for i, x := range buf {
			nums[i] = float64(x)
		}
	case cdf.SHORT:
		buf := make([]int16, n)
		if err := a.ReadInt16s(buf); err != nil {
			return domain.AttrValue{}, false
		}
		for i, x := range buf {
			nums[i] = float64(x)
		}
	case cdf.INT64:
		buf := make([]int64, n)
		if err := a.ReadInt64s(buf); err != nil {
			return domain.AttrValue{}, false
		}
		for i, x := range buf {
			nums[i] = float64(x)
		}
	default:
		return domain.AttrValue{}, false
	}
	return domain.NumberAttr(nums...), true
}
