package groupingService

import (
	"context"
	"math"
	"strconv"
	"time"

	"FaceGrouping/internal/api/grouping"
	contextPkg "FaceGrouping/pkg/context"
	"FaceGrouping/pkg/redis"

	"github.com/sirupsen/logrus"
)

// Analyzer answers the two questions grouping needs about photos.
type Analyzer interface {
	CountFaces(ctx context.Context, photo string) (int, error)
	Distance(ctx context.Context, photo1, photo2 string) (float64, error)
}

// Groups holds photo groups in creation order. Ids are never reused.
type Groups struct {
	order  []int
	photos map[int][]string
}

func NewGroups() *Groups {
	return &Groups{photos: make(map[int][]string)}
}

func (g *Groups) IDs() []int {
	return append([]int(nil), g.order...)
}

func (g *Groups) Photos(id int) []string {
	return g.photos[id]
}

func (g *Groups) Len() int {
	return len(g.order)
}

func (g *Groups) add(id int, photos ...string) {
	if _, ok := g.photos[id]; !ok {
		g.order = append(g.order, id)
	}
	g.photos[id] = append(g.photos[id], photos...)
}

func (g *Groups) contains(id int, photo string) bool {
	for _, p := range g.photos[id] {
		if p == photo {
			return true
		}
	}
	return false
}

func (g *Groups) remove(id int) {
	delete(g.photos, id)
	for i, v := range g.order {
		if v == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			return
		}
	}
}

// Grouper clusters photos by the people in them. Single-face photos form
// the groups, multi-face photos join and merge them.
type Grouper struct {
	analyzer  Analyzer
	cache     redis.IRedis
	cacheTTL  time.Duration
	threshold float64
	log       *logrus.Logger
}

func NewGrouper(analyzer Analyzer, cache redis.IRedis, cacheTTL time.Duration, threshold float64, log *logrus.Logger) *Grouper {
	return &Grouper{
		analyzer:  analyzer,
		cache:     cache,
		cacheTTL:  cacheTTL,
		threshold: threshold,
		log:       log,
	}
}

// CountFaces returns the number of faces in photo. Failures are logged and
// reported as zero faces without being cached.
func (g *Grouper) CountFaces(ctx context.Context, photo string) int {
	requestID := contextPkg.GetRequestID(ctx)

	if g.cache != nil {
		count, ok, err := g.cache.GetFaceCount(ctx, photo)
		if err != nil {
			g.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"photo":      photo,
				"error":      err.Error(),
			}).Warn("Face count cache lookup failed")
		} else if ok {
			return count
		}
	}

	count, err := g.analyzer.CountFaces(ctx, photo)
	if err != nil {
		g.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"photo":      photo,
			"error":      err.Error(),
		}).Error("Error counting faces")
		return 0
	}

	if g.cache != nil {
		if err := g.cache.SetFaceCount(ctx, photo, count, g.cacheTTL); err != nil {
			g.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"photo":      photo,
				"error":      err.Error(),
			}).Warn("Face count cache store failed")
		}
	}

	return count
}

func (g *Grouper) IsFamilyPhoto(ctx context.Context, photo string) bool {
	return g.CountFaces(ctx, photo) > 1
}

// CompareFaces returns the face distance between two photos, or +Inf when
// the comparison fails.
func (g *Grouper) CompareFaces(ctx context.Context, photo1, photo2 string) float64 {
	distance, err := g.analyzer.Distance(ctx, photo1, photo2)
	if err != nil {
		g.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"photo1":     photo1,
			"photo2":     photo2,
			"error":      err.Error(),
		}).Error("Error comparing faces")
		return math.Inf(1)
	}
	return distance
}

func (g *Grouper) matches(ctx context.Context, photo1, photo2 string) bool {
	return g.CompareFaces(ctx, photo1, photo2) <= g.threshold
}

// FindMatchingIndividuals returns the single-face photos among all whose
// face matches someone in familyPhoto.
func (g *Grouper) FindMatchingIndividuals(ctx context.Context, familyPhoto string, all []string) (map[string]bool, error) {
	matching := make(map[string]bool)

	for _, photo := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if g.CountFaces(ctx, photo) != 1 {
			continue
		}
		if g.matches(ctx, familyPhoto, photo) {
			matching[photo] = true
			g.log.WithFields(logrus.Fields{
				"request_id":   contextPkg.GetRequestID(ctx),
				"family_photo": familyPhoto,
				"photo":        photo,
			}).Info("Found matching individual photo")
		}
	}

	return matching, nil
}

// MergeGroups folds every group in ids into ids[0]. Photos keep their first
// position and duplicates are dropped.
func (g *Grouper) MergeGroups(groups *Groups, ids []int) {
	if len(ids) == 0 {
		return
	}

	target := ids[0]
	seen := make(map[string]bool)
	var merged []string

	for _, id := range ids {
		for _, photo := range groups.photos[id] {
			if !seen[photo] {
				seen[photo] = true
				merged = append(merged, photo)
			}
		}
		if id != target {
			groups.remove(id)
		}
	}

	groups.photos[target] = merged
}

// GroupPhotos runs both passes over photos. Photos with no detectable face
// end up in no group.
func (g *Grouper) GroupPhotos(ctx context.Context, photos []string) (*Groups, error) {
	requestID := contextPkg.GetRequestID(ctx)
	groups := NewGroups()
	next := 0

	var individuals, families []string
	for _, photo := range photos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch n := g.CountFaces(ctx, photo); {
		case n == 1:
			individuals = append(individuals, photo)
		case n > 1:
			families = append(families, photo)
		}
	}

	g.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"individuals": len(individuals),
		"families":    len(families),
	}).Info("Processing individual photos first")

	for _, photo := range individuals {
		matched := -1

	search:
		for _, id := range groups.order {
			for _, member := range groups.photos[id] {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				if g.matches(ctx, photo, member) {
					matched = id
					break search
				}
			}
		}

		if matched >= 0 {
			groups.add(matched, photo)
			g.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"photo":      photo,
				"group":      matched,
			}).Debug("Added individual photo to group")
			continue
		}

		groups.add(next, photo)
		g.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"photo":      photo,
			"group":      next,
		}).Debug("Created new group for individual photo")
		next++
	}

	for _, familyPhoto := range families {
		matching, err := g.FindMatchingIndividuals(ctx, familyPhoto, photos)
		if err != nil {
			return nil, err
		}

		var toMerge []int
		for _, id := range groups.order {
			for _, member := range groups.photos[id] {
				if matching[member] {
					toMerge = append(toMerge, id)
					break
				}
			}
		}

		if len(toMerge) == 0 {
			groups.add(next, familyPhoto)
			g.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"photo":      familyPhoto,
				"group":      next,
			}).Debug("Created new group for family photo")
			next++
			continue
		}

		if !groups.contains(toMerge[0], familyPhoto) {
			groups.add(toMerge[0], familyPhoto)
		}
		g.MergeGroups(groups, toMerge)
		g.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"photo":      familyPhoto,
			"merged":     toMerge,
		}).Info("Merged groups after processing family photo")
	}

	return groups, nil
}

// Describe builds the per-group metadata returned to clients.
func (g *Grouper) Describe(ctx context.Context, groups *Groups) map[string]grouping.GroupMetadata {
	out := make(map[string]grouping.GroupMetadata, groups.Len())

	for _, id := range groups.order {
		photos := groups.photos[id]
		family := 0
		for _, photo := range photos {
			if g.IsFamilyPhoto(ctx, photo) {
				family++
			}
		}

		out[strconv.Itoa(id)] = grouping.GroupMetadata{
			Photos:           append([]string(nil), photos...),
			FamilyPhotos:     family,
			IndividualPhotos: len(photos) - family,
			TotalPhotos:      len(photos),
			Members:          len(photos) - family,
		}
	}

	return out
}
