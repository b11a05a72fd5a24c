package detect

import "math"

// Channels with dedicated z-scores. Every other channel still counts toward
// aggregate volume but does not get its own detector.
const (
	ChannelEmail    = "Email"
	ChannelWeb      = "Web"
	ChannelEndpoint = "Endpoint"
)

// AnomalyScores carries the five z-scores produced by one detection pass.
type AnomalyScores struct {
	IncidentCountZ float64
	SeverityZ      float64
	EmailZ         float64
	WebZ           float64
	EndpointZ      float64
}

// MaxAbs returns the largest absolute z-score across all detectors.
func (s AnomalyScores) MaxAbs() float64 {
	max := math.Abs(s.IncidentCountZ)
	for _, z := range []float64{s.SeverityZ, s.EmailZ, s.WebZ, s.EndpointZ} {
		if a := math.Abs(z); a > max {
			max = a
		}
	}
	return max
}

// Detect compares current metrics against the baseline and returns the
// standardized deviations. Zero-variance baselines yield a zero score rather
// than a division error.
func Detect(current, baseline BehaviorMetrics) AnomalyScores {
	return AnomalyScores{
		IncidentCountZ: safeZ(current.MeanIncidentsPerDay, baseline.MeanIncidentsPerDay, baseline.StdDevIncidentsDay),
		SeverityZ:      safeZ(current.AvgSeverity, baseline.AvgSeverity, baseline.StdDevSeverity),
		EmailZ:         channelZ(ChannelEmail, current, baseline),
		WebZ:           channelZ(ChannelWeb, current, baseline),
		EndpointZ:      channelZ(ChannelEndpoint, current, baseline),
	}
}

func safeZ(observed, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (observed - mean) / stdDev
}

// channelZ scores one channel's current count against its own historical
// count rather than against the cross-channel distribution, so a dominant
// channel cannot mask anomalies in a rarely used one.
func channelZ(channel string, current, baseline BehaviorMetrics) float64 {
	cur := float64(current.ChannelCounts[channel])
	base := float64(baseline.ChannelCounts[channel])

	if base == 0 {
		// Previously unseen activity reads as moderately anomalous.
		if cur > 0 {
			return 2.0
		}
		return 0
	}

	var std float64
	if len(baseline.ChannelCounts) >= 2 {
		values := make([]float64, 0, len(baseline.ChannelCounts))
		for _, c := range baseline.ChannelCounts {
			values = append(values, float64(c))
		}
		_, std = meanStdDev(values)
	} else {
		std = math.Max(1, base*0.3)
	}
	if std < 1 {
		std = 1
	}
	return (cur - base) / std
}
