package stats

import "sort"

// Finalize computes the output fields for every entry and ranks them by
// TimeSum descending. Entries with equal TimeSum keep their input order.
//
// The input is not modified and retained samples are not copied, so
// calling Finalize twice on the same entries yields identical output.
func Finalize(entries []*URLStat, totalLines int, timeSumAll float64) []URLStat {
	out := make([]URLStat, 0, len(entries))

	for _, e := range entries {
		s := URLStat{
			URL:     e.URL,
			Count:   e.Count,
			TimeSum: e.TimeSum,
			TimeMax: e.TimeMax,
			TimeMed: e.TimeMed,
		}
		if totalLines > 0 {
			s.CountPerc = round3(100 * float64(e.Count) / float64(totalLines))
		}
		if timeSumAll > 0 {
			s.TimePerc = round3(100 * e.TimeSum / timeSumAll)
		}
		if e.Count > 0 {
			s.TimeAvg = round3(e.TimeSum / float64(e.Count))
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimeSum > out[j].TimeSum
	})

	return out
}

// Top returns at most n leading entries of ranked. n <= 0 means all.
func Top(ranked []URLStat, n int) []URLStat {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}
