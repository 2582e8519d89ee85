package countdown

import "fmt"

// FormatRemaining renders seconds as 1时2分3秒, 2分5秒 or 45秒.
// Zero or less reads as 已结束.
func FormatRemaining(seconds int) string {
	if seconds <= 0 {
		return "已结束"
	}
	h := seconds / 3600
	m := seconds % 3600 / 60
	s := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%d时%d分%d秒", h, m, s)
	case m > 0:
		return fmt.Sprintf("%d分%d秒", m, s)
	default:
		return fmt.Sprintf("%d秒", s)
	}
}

// Describe renders a reading for display, 识别失败 when unrecognized.
func Describe(r Reading) string {
	if !r.OK {
		return "识别失败"
	}
	return FormatRemaining(r.Seconds)
}
