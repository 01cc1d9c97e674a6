package session

import "math"

// Score bounds.
const (
	minScore = 0
	maxScore = 100
)

// Score computes the focus score for one session from its accumulators.
//
// The score rewards duration relative to target and quality of attention
// within elapsed time, minus a linear penalty for tab switches and idle
// time. It is total: the max(1, ...) guards keep it defined for
// elapsedSeconds == 0, and the result is clamped to [0, 100].
//
// Every finalize path must go through this function so that identical
// accumulator state always yields an identical score.
func Score(targetMinutes, elapsedSeconds, activeSeconds, idleSeconds, tabSwitches int) int {
	target := float64(targetMinutes * 60)
	if target < 1 {
		target = 1
	}
	elapsed := float64(elapsedSeconds)
	if elapsed < 1 {
		elapsed = 1
	}

	completion := float64(elapsedSeconds) / target
	activityRatio := float64(activeSeconds) / elapsed
	distractionPenalty := float64(tabSwitches)*2 + float64(idleSeconds)/30

	score := int(math.Round(100*completion*activityRatio - distractionPenalty))
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// ScoreSession is a convenience wrapper over Score for a loaded session.
func ScoreSession(sess *Session) int {
	return Score(sess.TargetMinutes, sess.ElapsedSeconds, sess.ActiveSeconds, sess.IdleSeconds, sess.TabSwitches)
}
