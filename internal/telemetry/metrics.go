package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	xpAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "learnxp_xp_awarded_total",
		Help: "XP granted, by ledger reason.",
	}, []string{"reason"})

	lessonsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "learnxp_lessons_completed_total",
		Help: "Lessons transitioned to completed.",
	})

	quizAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "learnxp_quiz_attempts_total",
		Help: "Recorded quiz attempts.",
	}, []string{"passed"})

	levelUps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "learnxp_level_ups_total",
		Help: "Awards that moved a user to a higher level.",
	})

	badgesAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "learnxp_badges_awarded_total",
		Help: "Badges unlocked, by badge.",
	}, []string{"badge"})
)

func RecordXPAwarded(reason string, amount int64) {
	xpAwarded.WithLabelValues(reason).Add(float64(amount))
}

func RecordLessonCompleted() {
	lessonsCompleted.Inc()
}

func RecordQuizAttempt(passed bool) {
	quizAttempts.WithLabelValues(strconv.FormatBool(passed)).Inc()
}

func RecordLevelUp() {
	levelUps.Inc()
}

func RecordBadgesAwarded(ids []string) {
	for _, id := range ids {
		badgesAwarded.WithLabelValues(id).Inc()
	}
}
