package dedup

import (
	"sort"
	"strings"

	"github.com/mkrasilnikov/gapminer/internal/model"
)

// Clusterer groups extracted problem records into canonical problems using
// exact-key bucketing followed by similarity clustering over union-find
// connected components.
type Clusterer struct {
	norm      *Normalizer
	sim       Similarity
	threshold float64
}

// NewClusterer creates a clusterer. A nil similarity falls back to lexical
// cosine; a non-positive threshold falls back to 0.85.
func NewClusterer(norm *Normalizer, sim Similarity, threshold float64) *Clusterer {
	if norm == nil {
		norm = NewNormalizer(nil)
	}
	if sim == nil {
		sim = LexicalCosine{}
	}
	if threshold <= 0 {
		threshold = 0.85
	}
	return &Clusterer{norm: norm, sim: sim, threshold: threshold}
}

// Cluster merges a batch of raw records into canonical problems. Grouping is
// order-independent: records are sorted by arrival sequence before any
// tie-break dependent step runs.
func (c *Clusterer) Cluster(records []model.Problem) []model.CanonicalProblem {
	usable := make([]model.Problem, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.Statement) != "" {
			usable = append(usable, r)
		}
	}
	sort.SliceStable(usable, func(i, j int) bool {
		if usable[i].Seq != usable[j].Seq {
			return usable[i].Seq < usable[j].Seq
		}
		return usable[i].SourceID < usable[j].SourceID
	})

	// Phase 1: exact buckets on the normalized key.
	type bucket struct {
		key     string
		records []model.Problem
	}
	var buckets []*bucket
	byKey := make(map[string]*bucket)
	for _, r := range usable {
		key := c.norm.Normalize(r.Statement)
		b, ok := byKey[key]
		if !ok {
			b = &bucket{key: key}
			byKey[key] = b
			buckets = append(buckets, b)
		}
		b.records = append(b.records, r)
	}

	// Phase 2: similarity clustering across bucket representatives. Connected
	// components come from union-find, so grouping does not depend on the
	// order merges are discovered.
	uf := newUnionFind(len(buckets))
	for i := 0; i < len(buckets); i++ {
		for j := i + 1; j < len(buckets); j++ {
			if c.sim.Score(buckets[i].records[0].Statement, buckets[j].records[0].Statement) >= c.threshold {
				uf.union(i, j)
			}
		}
	}

	componentOf := make(map[int][]model.Problem)
	var componentOrder []int
	for i, b := range buckets {
		root := uf.find(i)
		if _, seen := componentOf[root]; !seen {
			componentOrder = append(componentOrder, root)
		}
		componentOf[root] = append(componentOf[root], b.records...)
	}

	problems := make([]model.CanonicalProblem, 0, len(componentOrder))
	for _, root := range componentOrder {
		problems = append(problems, c.merge(componentOf[root]))
	}
	return problems
}

// MergeInto merges a new batch of records into an existing canonical set.
// New records are matched by exact key first, then by similarity against the
// existing canonical statements only (not historical raw records), falling
// back to creating a new canonical problem. The returned slice preserves the
// existing problems (with their identifiers) followed by any new ones.
func (c *Clusterer) MergeInto(existing []model.CanonicalProblem, records []model.Problem) []model.CanonicalProblem {
	result := make([]model.CanonicalProblem, len(existing))
	copy(result, existing)

	keyIndex := make(map[string]int, len(result))
	for i, p := range result {
		keyIndex[c.norm.Normalize(p.Statement)] = i
	}

	for _, incoming := range c.Cluster(records) {
		key := c.norm.Normalize(incoming.Statement)

		idx, ok := keyIndex[key]
		if !ok {
			best, bestScore := -1, 0.0
			for i := range result {
				score := c.sim.Score(incoming.Statement, result[i].Statement)
				if score >= c.threshold && score > bestScore {
					best, bestScore = i, score
				}
			}
			idx = best
			ok = best >= 0
		}

		if !ok {
			result = append(result, incoming)
			keyIndex[key] = len(result) - 1
			continue
		}
		result[idx] = c.extend(result[idx], incoming)
	}

	return result
}

// merge builds one canonical problem from a connected component. The records
// arrive in sequence order.
func (c *Clusterer) merge(records []model.Problem) model.CanonicalProblem {
	rep := records[0]
	for _, r := range records[1:] {
		if moreSpecific(r, rep) {
			rep = r
		}
	}

	canon := model.CanonicalProblem{
		Statement:    rep.Statement,
		Domain:       modeString(records, func(r model.Problem) string { return r.Domain }),
		Subdomain:    modeString(records, func(r model.Problem) string { return r.Subdomain }),
		Scope:        majorityScope(records),
		OriginalText: rep.OriginalText,
		Notes:        rep.Notes,
	}

	seenSource := make(map[string]bool)
	for _, r := range records {
		if r.SourceID != "" && !seenSource[r.SourceID] {
			seenSource[r.SourceID] = true
			canon.SourceIDs = append(canon.SourceIDs, r.SourceID)
		}
	}
	canon.MentionCount = len(canon.SourceIDs)

	canon.SubQuestions = c.mergeSubQuestions(nil, records)
	canon.Keywords = mergeKeywords(nil, records)

	return canon
}

// extend folds an incoming canonical (from a new batch) into an existing one,
// keeping the existing identifier. The canonical statement is replaced only
// when the incoming statement is strictly better specified: longer and
// contributing at least one sub-question not already present.
func (c *Clusterer) extend(existing, incoming model.CanonicalProblem) model.CanonicalProblem {
	before := len(existing.SubQuestions)

	existing.SubQuestions = c.mergeSubQuestionLists(existing.SubQuestions, incoming.SubQuestions)
	added := len(existing.SubQuestions) - before

	for _, sid := range incoming.SourceIDs {
		if !containsString(existing.SourceIDs, sid) {
			existing.SourceIDs = append(existing.SourceIDs, sid)
		}
	}
	existing.MentionCount = len(existing.SourceIDs)

	for _, kw := range incoming.Keywords {
		if !containsFold(existing.Keywords, kw) {
			existing.Keywords = append(existing.Keywords, kw)
		}
	}

	if len(incoming.Statement) > len(existing.Statement) && added >= 1 {
		existing.Statement = incoming.Statement
	}

	return existing
}

func (c *Clusterer) mergeSubQuestions(into []model.SubQuestion, records []model.Problem) []model.SubQuestion {
	for _, r := range records {
		qs := make([]model.SubQuestion, len(r.SubQuestions))
		copy(qs, r.SubQuestions)
		for i := range qs {
			if qs[i].SourceID == "" {
				qs[i].SourceID = r.SourceID
			}
		}
		into = c.mergeSubQuestionLists(into, qs)
	}
	return into
}

// mergeSubQuestionLists dedupes by normalized question text; duplicates keep
// the richest evidence description (longer non-empty text wins).
func (c *Clusterer) mergeSubQuestionLists(into, add []model.SubQuestion) []model.SubQuestion {
	index := make(map[string]int, len(into))
	for i, sq := range into {
		index[c.norm.Normalize(sq.Question)] = i
	}
	for _, sq := range add {
		if strings.TrimSpace(sq.Question) == "" {
			continue
		}
		key := c.norm.Normalize(sq.Question)
		if i, ok := index[key]; ok {
			if len(sq.EvidenceNeeded) > len(into[i].EvidenceNeeded) {
				into[i].EvidenceNeeded = sq.EvidenceNeeded
			}
			continue
		}
		index[key] = len(into)
		into = append(into, sq)
	}
	return into
}

// moreSpecific reports whether a should replace b as the canonical
// representative: presence of sub-questions, then statement length, then
// earliest-seen, then lowest source id as the final deterministic tie-break.
func moreSpecific(a, b model.Problem) bool {
	aHas, bHas := len(a.SubQuestions) > 0, len(b.SubQuestions) > 0
	if aHas != bHas {
		return aHas
	}
	if len(a.Statement) != len(b.Statement) {
		return len(a.Statement) > len(b.Statement)
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.SourceID < b.SourceID
}

// majorityScope picks the scope by majority vote, preferring the narrower
// scope on ties.
func majorityScope(records []model.Problem) model.Scope {
	counts := make(map[model.Scope]int)
	for _, r := range records {
		if r.Scope.Rank() > 0 {
			counts[r.Scope]++
		}
	}
	best := model.Scope("")
	for _, s := range []model.Scope{model.ScopeNarrow, model.ScopeMedium, model.ScopeBroad} {
		if counts[s] > counts[best] {
			best = s
		}
	}
	if best == "" {
		return records[0].Scope
	}
	return best
}

// modeString returns the most frequent non-empty value, first-seen on ties.
func modeString(records []model.Problem, get func(model.Problem) string) string {
	counts := make(map[string]int)
	var order []string
	for _, r := range records {
		v := get(r)
		if v == "" {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	best := ""
	for _, v := range order {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best
}

func mergeKeywords(into []string, records []model.Problem) []string {
	for _, r := range records {
		for _, kw := range r.Keywords {
			kw = strings.TrimSpace(kw)
			if kw != "" && !containsFold(into, kw) {
				into = append(into, kw)
			}
		}
	}
	return into
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
