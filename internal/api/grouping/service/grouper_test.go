package groupingService

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"FaceGrouping/pkg/redis"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAnalyzer knows who is in each photo. Photos sharing a person are at
// distance 0.2, all others at 0.9.
type fakeAnalyzer struct {
	mu         sync.Mutex
	people     map[string][]string
	countErr   map[string]error
	compareErr map[string]error
	counts     map[string]int
	compares   int
}

func newFakeAnalyzer(people map[string][]string) *fakeAnalyzer {
	return &fakeAnalyzer{
		people:     people,
		countErr:   map[string]error{},
		compareErr: map[string]error{},
		counts:     map[string]int{},
	}
}

func (f *fakeAnalyzer) CountFaces(_ context.Context, photo string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[photo]++
	if err := f.countErr[photo]; err != nil {
		return 0, err
	}
	return len(f.people[photo]), nil
}

func (f *fakeAnalyzer) Distance(_ context.Context, photo1, photo2 string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compares++
	if err := f.compareErr[photo1]; err != nil {
		return 0, err
	}
	if err := f.compareErr[photo2]; err != nil {
		return 0, err
	}
	for _, a := range f.people[photo1] {
		for _, b := range f.people[photo2] {
			if a == b {
				return 0.2, nil
			}
		}
	}
	return 0.9, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestGrouper(analyzer Analyzer) *Grouper {
	return NewGrouper(analyzer, redis.NewMemory(), time.Hour, 0.6, quietLogger())
}

func groupsOf(g *Groups) map[int][]string {
	out := map[int][]string{}
	for _, id := range g.IDs() {
		out[id] = g.Photos(id)
	}
	return out
}

func TestGroupIndividuals(t *testing.T) {
	analyzer := newFakeAnalyzer(map[string][]string{
		"alice1.jpg": {"alice"},
		"bob1.jpg":   {"bob"},
		"alice2.jpg": {"alice"},
	})
	g := newTestGrouper(analyzer)

	groups, err := g.GroupPhotos(context.Background(), []string{"alice1.jpg", "bob1.jpg", "alice2.jpg"})
	require.NoError(t, err)

	assert.Equal(t, map[int][]string{
		0: {"alice1.jpg", "alice2.jpg"},
		1: {"bob1.jpg"},
	}, groupsOf(groups))
	assert.Equal(t, []int{0, 1}, groups.IDs())
}

func TestFamilyPhotoMergesGroups(t *testing.T) {
	analyzer := newFakeAnalyzer(map[string][]string{
		"alice.jpg":  {"alice"},
		"bob.jpg":    {"bob"},
		"carol.jpg":  {"carol"},
		"family.jpg": {"alice", "bob"},
	})
	g := newTestGrouper(analyzer)

	groups, err := g.GroupPhotos(context.Background(), []string{"family.jpg", "alice.jpg", "bob.jpg", "carol.jpg"})
	require.NoError(t, err)

	assert.Equal(t, map[int][]string{
		0: {"alice.jpg", "family.jpg", "bob.jpg"},
		2: {"carol.jpg"},
	}, groupsOf(groups))
	assert.Equal(t, []int{0, 2}, groups.IDs())
}

func TestUnmatchedFamilyPhotoOpensGroup(t *testing.T) {
	analyzer := newFakeAnalyzer(map[string][]string{
		"alice.jpg":     {"alice"},
		"strangers.jpg": {"dave", "erin"},
	})
	g := newTestGrouper(analyzer)

	groups, err := g.GroupPhotos(context.Background(), []string{"strangers.jpg", "alice.jpg"})
	require.NoError(t, err)

	assert.Equal(t, map[int][]string{
		0: {"alice.jpg"},
		1: {"strangers.jpg"},
	}, groupsOf(groups))
}

func TestFamilyPhotoNotDuplicated(t *testing.T) {
	analyzer := newFakeAnalyzer(map[string][]string{
		"alice.jpg":  {"alice"},
		"family.jpg": {"alice", "bob"},
	})
	g := newTestGrouper(analyzer)

	groups, err := g.GroupPhotos(context.Background(), []string{"alice.jpg", "family.jpg", "family.jpg"})
	require.NoError(t, err)

	assert.Equal(t, map[int][]string{
		0: {"alice.jpg", "family.jpg"},
	}, groupsOf(groups))
}

func TestFacelessPhotosAreNotGrouped(t *testing.T) {
	analyzer := newFakeAnalyzer(map[string][]string{
		"alice.jpg":     {"alice"},
		"landscape.jpg": {},
	})
	g := newTestGrouper(analyzer)

	groups, err := g.GroupPhotos(context.Background(), []string{"landscape.jpg", "alice.jpg"})
	require.NoError(t, err)

	assert.Equal(t, map[int][]string{0: {"alice.jpg"}}, groupsOf(groups))
}

func TestCompareFailureMeansNoMatch(t *testing.T) {
	analyzer := newFakeAnalyzer(map[string][]string{
		"alice1.jpg": {"alice"},
		"alice2.jpg": {"alice"},
	})
	analyzer.compareErr["alice2.jpg"] = errors.New("model crashed")
	g := newTestGrouper(analyzer)

	assert.True(t, math.IsInf(g.CompareFaces(context.Background(), "alice1.jpg", "alice2.jpg"), 1))

	groups, err := g.GroupPhotos(context.Background(), []string{"alice1.jpg", "alice2.jpg"})
	require.NoError(t, err)
	assert.Equal(t, 2, groups.Len())
}

func TestCountFacesCachesSuccessOnly(t *testing.T) {
	analyzer := newFakeAnalyzer(map[string][]string{
		"alice.jpg":  {"alice"},
		"broken.jpg": {"bob"},
	})
	analyzer.countErr["broken.jpg"] = errors.New("unreadable image")
	g := newTestGrouper(analyzer)
	ctx := context.Background()

	assert.Equal(t, 1, g.CountFaces(ctx, "alice.jpg"))
	assert.Equal(t, 1, g.CountFaces(ctx, "alice.jpg"))
	assert.Equal(t, 1, analyzer.counts["alice.jpg"])

	assert.Equal(t, 0, g.CountFaces(ctx, "broken.jpg"))
	assert.Equal(t, 0, g.CountFaces(ctx, "broken.jpg"))
	assert.Equal(t, 2, analyzer.counts["broken.jpg"])

	assert.False(t, g.IsFamilyPhoto(ctx, "alice.jpg"))
}

func TestFindMatchingIndividuals(t *testing.T) {
	analyzer := newFakeAnalyzer(map[string][]string{
		"alice.jpg":   {"alice"},
		"bob.jpg":     {"bob"},
		"family.jpg":  {"alice", "carol"},
		"family2.jpg": {"alice", "bob"},
	})
	g := newTestGrouper(analyzer)

	matching, err := g.FindMatchingIndividuals(context.Background(), "family.jpg",
		[]string{"alice.jpg", "bob.jpg", "family2.jpg"})
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"alice.jpg": true}, matching)
}

func TestMergeGroups(t *testing.T) {
	g := newTestGrouper(newFakeAnalyzer(nil))
	groups := NewGroups()
	groups.add(0, "a.jpg")
	groups.add(1, "b.jpg", "a.jpg")
	groups.add(2, "c.jpg")
	groups.add(3, "d.jpg")

	g.MergeGroups(groups, []int{1, 3})

	assert.Equal(t, []int{0, 1, 2}, groups.IDs())
	assert.Equal(t, []string{"b.jpg", "a.jpg", "d.jpg"}, groups.Photos(1))

	g.MergeGroups(groups, nil)
	assert.Equal(t, 3, groups.Len())
}

func TestGroupPhotosHonoursCancellation(t *testing.T) {
	analyzer := newFakeAnalyzer(map[string][]string{"alice.jpg": {"alice"}})
	g := newTestGrouper(analyzer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.GroupPhotos(ctx, []string{"alice.jpg"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDescribe(t *testing.T) {
	analyzer := newFakeAnalyzer(map[string][]string{
		"alice1.jpg": {"alice"},
		"alice2.jpg": {"alice"},
		"bob.jpg":    {"bob"},
		"family.jpg": {"alice", "bob"},
	})
	g := newTestGrouper(analyzer)
	ctx := context.Background()

	groups, err := g.GroupPhotos(ctx, []string{"alice1.jpg", "alice2.jpg", "bob.jpg", "family.jpg"})
	require.NoError(t, err)

	meta := g.Describe(ctx, groups)
	require.Len(t, meta, 1)

	group := meta["0"]
	assert.Equal(t, []string{"alice1.jpg", "alice2.jpg", "family.jpg", "bob.jpg"}, group.Photos)
	assert.Equal(t, 1, group.FamilyPhotos)
	assert.Equal(t, 3, group.IndividualPhotos)
	assert.Equal(t, 3, group.Members)
	assert.Equal(t, 4, group.TotalPhotos)
}
