package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts counts /token calls by outcome (success, invalid, error, limited).
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "login_attempts_total",
		Help:      "Login attempts by outcome.",
	}, []string{"outcome"})

	// AuthDenials counts requests rejected by the auth middlewares.
	AuthDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "auth_denials_total",
		Help:      "Requests rejected as unauthenticated or forbidden.",
	}, []string{"reason"})

	CreditOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "credit_operations_total",
		Help:      "Credit ledger operations by kind and result.",
	}, []string{"op", "result"})

	AttendanceMarks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "marks_total",
		Help:      "Attendance marks written, by source.",
	}, []string{"source"})
)
