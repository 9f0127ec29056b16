package stats

// URLStat is the running statistics record for one request target.
//
// During aggregation only Count, TimeSum, TimeMax and TimeMed are
// maintained; CountPerc and TimePerc hold provisional values computed
// against the running totals at first sight. Finalize overwrites the
// percentages and fills TimeAvg.
type URLStat struct {
	URL       string  `json:"url"`
	Count     int     `json:"count"`
	CountPerc float64 `json:"count_perc"`
	TimeSum   float64 `json:"time_sum"`
	TimeMax   float64 `json:"time_max"`
	TimeAvg   float64 `json:"time_avg"`
	TimeMed   float64 `json:"time_med"`
	TimePerc  float64 `json:"time_perc"`

	// samples holds every request time seen for URL, for the median.
	samples []float64
}

// newURLStat creates the record for a URL seen for the first time.
// totalLines and timeSumAll already include this observation.
func newURLStat(url string, requestTime float64, totalLines int, timeSumAll float64) *URLStat {
	s := &URLStat{
		URL:       url,
		Count:     1,
		CountPerc: round3(100 / float64(totalLines)),
		TimeSum:   round3(requestTime),
		TimeMax:   round3(requestTime),
		TimeAvg:   round3(requestTime),
		TimeMed:   round3(requestTime),
		samples:   []float64{requestTime},
	}
	if timeSumAll > 0 {
		s.TimePerc = round3(100 * requestTime / timeSumAll)
	}
	return s
}

// Update folds another request time into the record.
func (s *URLStat) Update(requestTime float64) {
	s.Count++
	s.TimeSum = round3(s.TimeSum + requestTime)
	s.TimeMax = round3(max(s.TimeMax, requestTime))
	s.samples = append(s.samples, requestTime)
	s.TimeMed = round3(median(s.samples))
}

// Samples returns a copy of the request times retained for this URL.
func (s *URLStat) Samples() []float64 {
	out := make([]float64, len(s.samples))
	copy(out, s.samples)
	return out
}
