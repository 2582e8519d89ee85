package engine

import "fmt"

// ValidateConfiguration checks the shape of a countdown region and the click
// points. Every violation is reported; confirm is only checked when non-nil.
func ValidateConfiguration(region, buy, confirm []int) (bool, []string) {
	var problems []string

	if len(region) != 4 {
		problems = append(problems, fmt.Sprintf("countdown region must have 4 coordinates, got %d", len(region)))
	} else {
		left, top, right, bottom := region[0], region[1], region[2], region[3]
		if left >= right {
			problems = append(problems, fmt.Sprintf("countdown region left (%d) must be less than right (%d)", left, right))
		}
		if top >= bottom {
			problems = append(problems, fmt.Sprintf("countdown region top (%d) must be less than bottom (%d)", top, bottom))
		}
		for _, c := range region {
			if c < 0 {
				problems = append(problems, fmt.Sprintf("countdown region coordinates must not be negative: %v", region))
				break
			}
		}
	}

	problems = append(problems, validatePoint("buy button", buy)...)
	if confirm != nil {
		problems = append(problems, validatePoint("confirm button", confirm)...)
	}

	return len(problems) == 0, problems
}

func validatePoint(name string, p []int) []string {
	if len(p) != 2 {
		return []string{fmt.Sprintf("%s position must have 2 coordinates, got %d", name, len(p))}
	}
	if p[0] < 0 || p[1] < 0 {
		return []string{fmt.Sprintf("%s coordinates must not be negative: %v", name, p)}
	}
	return nil
}
