// Package dedup clusters candidate records that describe the same advisory
// and merges each cluster into one canonical record.
package dedup

import (
	"blackwatch/internal/models"
)

// Cluster is a group of records sharing a key, in first-seen order.
type Cluster struct {
	Key     Key
	Members []models.CandidateRecord
}

// Stats summarizes one coalescing pass.
type Stats struct {
	Input    int
	Clusters int
	Merged   int
	Dropped  int
	Output   int
}

// Clusters groups records by ClusterKey. Clusters are returned in the
// order their first member appeared.
func Clusters(records []models.CandidateRecord) []Cluster {
	index := make(map[Key]int)

	var clusters []Cluster

	for i := range records {
		key := ClusterKey(&records[i])

		pos, ok := index[key]
		if !ok {
			pos = len(clusters)
			index[key] = pos
			clusters = append(clusters, Cluster{Key: key})
		}

		clusters[pos].Members = append(clusters[pos].Members, records[i])
	}

	return clusters
}

type identity struct {
	url   string
	title string
}

// Coalesce merges records describing the same advisory. The input is not
// modified.
func Coalesce(records []models.CandidateRecord) []models.CandidateRecord {
	out, _ := CoalesceWithStats(records)
	return out
}

// CoalesceWithStats is Coalesce that also reports what happened.
func CoalesceWithStats(records []models.CandidateRecord) ([]models.CandidateRecord, Stats) {
	stats := Stats{Input: len(records)}
	clusters := Clusters(records)
	stats.Clusters = len(clusters)

	seen := make(map[identity]struct{}, len(clusters))
	out := make([]models.CandidateRecord, 0, len(clusters))

	for _, c := range clusters {
		stats.Merged += len(c.Members) - 1

		rep := merge(c.Members)

		id := identity{url: CanonicalURL(rep.Host, rep.Path), title: NormalizeTitle(rep.Title)}
		if _, dup := seen[id]; dup {
			stats.Dropped++
			continue
		}

		seen[id] = struct{}{}
		out = append(out, rep)
	}

	stats.Output = len(out)

	return out, stats
}
