// Package stats contains writing metrics and history reporting.
package stats

import (
	"fmt"
	"math"
	"strings"
)

// Speed levels run from LevelAlarm (at or barely above the minimum) to LevelSafe.
const (
	LevelAlarm = 0
	LevelSafe  = 9
)

// CountWords returns the number of whitespace-delimited tokens in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// FormatDuration renders seconds as zero-padded MM:SS. Minutes are not capped.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// SpeedLevel maps the margin between current and minimum speed onto 0..9.
func SpeedLevel(currentWPM, minWPM int) int {
	delta := currentWPM - minWPM
	if delta <= 1 {
		return LevelAlarm
	}
	if delta >= 10 {
		return LevelSafe
	}
	level := (delta-1)*8/9 + 1
	if level < 1 {
		level = 1
	}
	if level > 8 {
		level = 8
	}
	return level
}

// WordsPerMinute computes a rounded rate from net words over elapsed seconds.
func WordsPerMinute(netWords, elapsedSec int) int {
	if elapsedSec <= 0 || netWords <= 0 {
		return 0
	}
	return int(math.Round(float64(netWords) * 60 / float64(elapsedSec)))
}
