package scan

import (
	"context"
	"sort"

	"genie-trader/internal/metrics"
	"genie-trader/internal/venue"
)

// Result 为按成交量降序排列的候选列表，其中每个元素都满足所属通道的入选规则。
type Result struct {
	Venue      venue.Kind
	Candidates []venue.Candidate
}

// Empty 表示没有任何候选。
func (r Result) Empty() bool {
	return len(r.Candidates) == 0
}

// Top 返回前 n 个候选。
func (r Result) Top(n int) []venue.Candidate {
	if n <= 0 {
		return nil
	}
	if n > len(r.Candidates) {
		n = len(r.Candidates)
	}
	out := make([]venue.Candidate, n)
	copy(out, r.Candidates[:n])
	return out
}

// Best 返回排名第一的候选。
func (r Result) Best() (venue.Candidate, bool) {
	if r.Empty() {
		return venue.Candidate{}, false
	}
	return r.Candidates[0], true
}

// Rank 过滤不满足规则的行情并按成交量降序稳定排序，成交量相同保持输入顺序。
func Rank(quotes []venue.Quote, rule venue.Eligibility, kind venue.Kind) Result {
	candidates := make([]venue.Candidate, 0, len(quotes))
	for _, q := range quotes {
		if !rule.Allows(q) {
			continue
		}
		candidates = append(candidates, venue.Candidate{
			Symbol: q.Symbol,
			Price:  q.Price,
			Volume: q.Volume,
			Venue:  kind,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Volume.GreaterThan(candidates[j].Volume)
	})

	return Result{Venue: kind, Candidates: candidates}
}

// Scan 拉取行情并完成筛选排序。
func (f *Fetcher) Scan(ctx context.Context, adapter venue.Adapter) Result {
	result := Rank(f.Fetch(ctx, adapter), adapter.Eligibility(), adapter.Venue())
	metrics.SetScanCandidates(string(result.Venue), len(result.Candidates))
	return result
}
