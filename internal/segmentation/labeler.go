package segmentation

import (
	"slices"

	"github.com/shopspring/decimal"
	"github.com/zatekoja/retailsegmentation/internal/domain/entities"
)

type clusterProfile struct {
	id            int
	count         int
	meanMonetary  float64
	meanRecency   float64
	meanFrequency float64
}

// SegmentLabeler names clusters by ranking their mean statistics. Cluster
// IDs carry no meaning across training runs, so labels are derived on every
// call and never stored per ID.
type SegmentLabeler struct{}

// NewSegmentLabeler creates a new segment labeler
func NewSegmentLabeler() *SegmentLabeler {
	return &SegmentLabeler{}
}

// LabelSegments maps every cluster present in customers to a label:
//  1. highest mean Monetary -> High-Value Loyal
//  2. highest mean Recency of the rest -> At-Risk/Churning
//  3. lowest mean Recency of the rest -> Recent Low Spenders
//  4. lowest cluster ID of the rest -> Bulk/Average Buyers
//
// Equal means are resolved in favour of the lowest cluster ID. Clusters left
// over after step 4 stay unlabelled.
func (l *SegmentLabeler) LabelSegments(customers []entities.ScoredCustomer) map[int]entities.SegmentLabel {
	pool := profileClusters(customers)
	labels := make(map[int]entities.SegmentLabel, len(pool))

	steps := []struct {
		label  entities.SegmentLabel
		better func(a, b clusterProfile) bool
	}{
		{entities.SegmentHighValueLoyal, func(a, b clusterProfile) bool { return a.meanMonetary > b.meanMonetary }},
		{entities.SegmentAtRisk, func(a, b clusterProfile) bool { return a.meanRecency > b.meanRecency }},
		{entities.SegmentRecentLowSpenders, func(a, b clusterProfile) bool { return a.meanRecency < b.meanRecency }},
		{entities.SegmentBulkAverage, func(a, b clusterProfile) bool { return false }},
	}
	for _, step := range steps {
		if len(pool) == 0 {
			break
		}
		best := 0
		for i := 1; i < len(pool); i++ {
			if step.better(pool[i], pool[best]) {
				best = i
			}
		}
		labels[pool[best].id] = step.label
		pool = slices.Delete(pool, best, best+1)
	}
	return labels
}

// ApplyLabels returns a copy of customers with Segment filled from labels.
func ApplyLabels(customers []entities.ScoredCustomer, labels map[int]entities.SegmentLabel) []entities.ScoredCustomer {
	out := make([]entities.ScoredCustomer, len(customers))
	for i, c := range customers {
		c.Segment = labels[c.Cluster]
		out[i] = c
	}
	return out
}

// Summarize aggregates labelled customers per segment, in label order.
// Customers of unlabelled clusters are reported last under an empty label.
func Summarize(customers []entities.ScoredCustomer) []entities.SegmentSummary {
	type acc struct {
		clusters  []int
		count     int
		monetary  decimal.Decimal
		recency   int64
		frequency int64
	}
	groups := make(map[entities.SegmentLabel]*acc)
	for _, c := range customers {
		g, ok := groups[c.Segment]
		if !ok {
			g = &acc{}
			groups[c.Segment] = g
		}
		if !slices.Contains(g.clusters, c.Cluster) {
			g.clusters = append(g.clusters, c.Cluster)
		}
		g.count++
		g.monetary = g.monetary.Add(c.Monetary)
		g.recency += int64(c.Recency)
		g.frequency += int64(c.Frequency)
	}

	order := append(entities.SegmentLabels(), "")
	summaries := make([]entities.SegmentSummary, 0, len(groups))
	for _, label := range order {
		g, ok := groups[label]
		if !ok {
			continue
		}
		slices.Sort(g.clusters)
		n := float64(g.count)
		summaries = append(summaries, entities.SegmentSummary{
			Segment:       label,
			Clusters:      g.clusters,
			Count:         g.count,
			MeanMonetary:  g.monetary.Div(decimal.NewFromInt(int64(g.count))).InexactFloat64(),
			MeanRecency:   float64(g.recency) / n,
			MeanFrequency: float64(g.frequency) / n,
		})
	}
	return summaries
}

// profileClusters returns per-cluster means ordered by cluster ID.
func profileClusters(customers []entities.ScoredCustomer) []clusterProfile {
	type acc struct {
		count     int
		monetary  decimal.Decimal
		recency   int64
		frequency int64
	}
	byID := make(map[int]*acc)
	for _, c := range customers {
		a, ok := byID[c.Cluster]
		if !ok {
			a = &acc{}
			byID[c.Cluster] = a
		}
		a.count++
		a.monetary = a.monetary.Add(c.Monetary)
		a.recency += int64(c.Recency)
		a.frequency += int64(c.Frequency)
	}

	profiles := make([]clusterProfile, 0, len(byID))
	for id, a := range byID {
		n := float64(a.count)
		profiles = append(profiles, clusterProfile{
			id:            id,
			count:         a.count,
			meanMonetary:  a.monetary.Div(decimal.NewFromInt(int64(a.count))).InexactFloat64(),
			meanRecency:   float64(a.recency) / n,
			meanFrequency: float64(a.frequency) / n,
		})
	}
	slices.SortFunc(profiles, func(a, b clusterProfile) int { return a.id - b.id })
	return profiles
}
