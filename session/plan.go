package session

import (
	"slices"

	"github.com/gomlx/graphrt/devices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CopySpec records the resolved source and target locations of one feed or
// fetch, and whether moving the value requires a device copy or the buffer
// can be aliased.
type CopySpec struct {
	Source, Target devices.Location

	// NeedsCopy is true when Source cannot alias Target.
	NeedsCopy bool
}

// FeedsFetchesPlan fixes, once per (caller, graph) pair, how values enter
// and leave an execution: which graph values are fed, which are fetched, and
// per value whether a cross-location copy is needed.
//
// Build it with NewFeedsFetchesPlan against the graph's session state, then
// finalize it exactly once with the caller-side locations. After
// FinalizeCopyInfo the plan is immutable and reused by every execution, so
// location resolution never happens on the hot path.
type FeedsFetchesPlan struct {
	feedNames  []string
	fetchNames []string

	// Value indices in the graph's session state, parallel to the names.
	feedIndices  []int
	fetchIndices []int

	feeds   []CopySpec
	fetches []CopySpec

	finalized bool
}

// NewFeedsFetchesPlan creates the plan for feeding the named values of the
// graph behind st and fetching the named outputs. All names must be declared
// in the graph; the graph-side locations are resolved here, the caller-side
// locations in FinalizeCopyInfo.
func NewFeedsFetchesPlan(feedNames, fetchNames []string, st *State) (*FeedsFetchesPlan, error) {
	p := &FeedsFetchesPlan{
		feedNames:    slices.Clone(feedNames),
		fetchNames:   slices.Clone(fetchNames),
		feedIndices:  make([]int, len(feedNames)),
		fetchIndices: make([]int, len(fetchNames)),
		feeds:        make([]CopySpec, len(feedNames)),
		fetches:      make([]CopySpec, len(fetchNames)),
	}
	for i, name := range feedNames {
		idx, found := st.ValueIndex(name)
		if !found {
			return nil, errors.WithMessagef(ErrConfiguration, "graph %q has no value %q to feed", st.graph.Name, name)
		}
		p.feedIndices[i] = idx
		p.feeds[i].Target = st.LocationByIndex(idx)
	}
	for i, name := range fetchNames {
		idx, found := st.ValueIndex(name)
		if !found {
			return nil, errors.WithMessagef(ErrConfiguration, "graph %q has no value %q to fetch", st.graph.Name, name)
		}
		p.fetchIndices[i] = idx
		p.fetches[i].Source = st.LocationByIndex(idx)
	}
	return p, nil
}

// FinalizeCopyInfo fills in the caller-side locations (where feeds come
// from, where fetches must land) and decides, per value, whether a copy is
// needed. It must be called exactly once before the plan is executed.
func (p *FeedsFetchesPlan) FinalizeCopyInfo(feedLocations, fetchLocations []devices.Location) error {
	if p.finalized {
		return errors.WithMessage(ErrConfiguration, "FeedsFetchesPlan.FinalizeCopyInfo called more than once")
	}
	if len(feedLocations) != len(p.feedNames) {
		return errors.WithMessagef(ErrConfiguration, "FinalizeCopyInfo given %d feed locations for %d feeds",
			len(feedLocations), len(p.feedNames))
	}
	if len(fetchLocations) != len(p.fetchNames) {
		return errors.WithMessagef(ErrConfiguration, "FinalizeCopyInfo given %d fetch locations for %d fetches",
			len(fetchLocations), len(p.fetchNames))
	}
	for i := range p.feeds {
		p.feeds[i].Source = feedLocations[i]
		p.feeds[i].NeedsCopy = !p.feeds[i].Source.CanAlias(p.feeds[i].Target)
	}
	for i := range p.fetches {
		p.fetches[i].Target = fetchLocations[i]
		p.fetches[i].NeedsCopy = !p.fetches[i].Source.CanAlias(p.fetches[i].Target)
	}
	p.finalized = true
	if klog.V(2).Enabled() {
		for i, spec := range p.feeds {
			klog.Infof("plan feed %q: %s -> %s (copy=%v)", p.feedNames[i], spec.Source, spec.Target, spec.NeedsCopy)
		}
		for i, spec := range p.fetches {
			klog.Infof("plan fetch %q: %s -> %s (copy=%v)", p.fetchNames[i], spec.Source, spec.Target, spec.NeedsCopy)
		}
	}
	return nil
}

// Finalized reports whether FinalizeCopyInfo has run.
func (p *FeedsFetchesPlan) Finalized() bool { return p.finalized }

// NumFeeds returns the number of fed values.
func (p *FeedsFetchesPlan) NumFeeds() int { return len(p.feedNames) }

// NumFetches returns the number of fetched values.
func (p *FeedsFetchesPlan) NumFetches() int { return len(p.fetchNames) }

// FeedNames returns the fed value names, in feed order.
func (p *FeedsFetchesPlan) FeedNames() []string { return slices.Clone(p.feedNames) }

// FetchNames returns the fetched value names, in fetch order.
func (p *FeedsFetchesPlan) FetchNames() []string { return slices.Clone(p.fetchNames) }

// FeedCopySpec returns the resolved copy info of the i-th feed.
func (p *FeedsFetchesPlan) FeedCopySpec(i int) CopySpec { return p.feeds[i] }

// FetchCopySpec returns the resolved copy info of the i-th fetch.
func (p *FeedsFetchesPlan) FetchCopySpec(i int) CopySpec { return p.fetches[i] }
