package supplier

import (
	"fmt"
	"time"
)

// Alert thresholds from the supplier SLA: suppliers must confirm at least
// 90% of transmitted orders, confirm within 48 hours on average, and hit
// the promised delivery date at least 80% of the time.
const (
	minConfirmationRate = 0.90
	maxAvgProcessing    = 48 * time.Hour
	minOnTimeRate       = 0.80
)

// Alert describes one SLA breach for one supplier.
type Alert struct {
	Metric  string
	Message string
}

// Evaluate checks a snapshot against the SLA thresholds. Metrics with no
// samples in the window raise nothing — absence of data is not a breach.
func Evaluate(snap PerfSnapshot) []Alert {
	var alerts []Alert

	if snap.OrdersSent > 0 {
		rate := float64(snap.Confirmations) / float64(snap.OrdersSent)
		if rate < minConfirmationRate {
			alerts = append(alerts, Alert{
				Metric: "confirmation_rate",
				Message: fmt.Sprintf("confirmation rate %.0f%% below %.0f%% (%d/%d orders)",
					rate*100, minConfirmationRate*100, snap.Confirmations, snap.OrdersSent),
			})
		}
	}

	if snap.Confirmations > 0 {
		avg := snap.ProcessingTotal / time.Duration(snap.Confirmations)
		if avg > maxAvgProcessing {
			alerts = append(alerts, Alert{
				Metric: "avg_processing_time",
				Message: fmt.Sprintf("average processing time %s above %s",
					avg.Round(time.Minute), maxAvgProcessing),
			})
		}
	}

	if snap.Deliveries > 0 {
		rate := float64(snap.OnTime) / float64(snap.Deliveries)
		if rate < minOnTimeRate {
			alerts = append(alerts, Alert{
				Metric: "on_time_rate",
				Message: fmt.Sprintf("on-time delivery rate %.0f%% below %.0f%% (%d/%d deliveries)",
					rate*100, minOnTimeRate*100, snap.OnTime, snap.Deliveries),
			})
		}
	}

	return alerts
}
