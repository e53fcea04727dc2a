package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginsTotal tracks login attempts by outcome (success, invalid, locked).
	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neoguardian_logins_total",
		Help: "Total number of login attempts by outcome",
	}, []string{"outcome"})

	// TokenVerificationsTotal tracks token verifications by outcome.
	TokenVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neoguardian_token_verifications_total",
		Help: "Total number of token verifications by outcome",
	}, []string{"outcome"})

	// LockoutsTotal counts accounts locked after repeated failures.
	LockoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neoguardian_lockouts_total",
		Help: "Total number of account lockouts triggered",
	})

	// GuardDenialsTotal counts authorization denials by kind (role, scope).
	GuardDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neoguardian_guard_denials_total",
		Help: "Total number of authorization denials",
	}, []string{"kind"})

	// TokenRefreshesTotal counts refresh rotations by outcome.
	TokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neoguardian_token_refreshes_total",
		Help: "Total number of refresh token rotations by outcome",
	}, []string{"outcome"})
)
