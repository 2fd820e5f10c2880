package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/username/school-status/internal/calendar"
	"github.com/username/school-status/internal/store"
	"go.uber.org/zap"
)

type fixture struct {
	t     *testing.T
	store *store.MemoryStore
	loc   *time.Location
}

// newFixture seeds an empty but complete data set for each year
func newFixture(t *testing.T, years ...int) *fixture {
	t.Helper()

	f := &fixture{t: t, store: store.NewMemoryStore(), loc: time.UTC}
	for _, year := range years {
		for _, ct := range calendar.CalendarTypes() {
			for _, spec := range append(ct.Exceptions(), ct.MakeupSpec()) {
				if spec.Shape == calendar.ShapeTracked {
					f.put(ct, year, spec.Category, map[string][]string{
						"track1": {}, "track2": {}, "track3": {}, "track4": {},
					})
				} else {
					f.put(ct, year, spec.Category, []string{})
				}
			}
			f.put(ct, year, calendar.Specials, map[string]string{})
		}
	}
	f.putGlobal(calendar.Cancellations, []string{})
	f.putGlobal(calendar.Delays, map[string]float64{})

	return f
}

func (f *fixture) put(ct calendar.CalendarType, year int, category calendar.Category, v any) {
	f.t.Helper()
	require.NoError(f.t, f.store.PutJSON(store.Key{CalendarType: ct, Year: year, Category: category}, v))
}

func (f *fixture) putGlobal(category calendar.Category, v any) {
	f.t.Helper()
	require.NoError(f.t, f.store.PutJSON(store.GlobalKey(category), v))
}

func (f *fixture) resolver() *Resolver {
	return NewResolver(store.NewAccessor(f.store, zap.NewNop()), f.loc, zap.NewNop())
}

func (f *fixture) aggregator(now time.Time) *Aggregator {
	agg := NewAggregator(f.resolver(), zap.NewNop())
	agg.SetClock(func() time.Time { return now })
	return agg
}
