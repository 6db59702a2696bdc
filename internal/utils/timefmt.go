package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// shift times are stored as 24-hour wall-clock strings, e.g "09:00" or "23:45".
var time24Pattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

func Is24HourTime(s string) bool {
	return time24Pattern.MatchString(s)
}

// To12Hour renders a stored "HH:MM" value as "h:MM AM/PM" for emails and
// list responses. The format is fixed, there is no locale handling.
func To12Hour(time24 string) string {
	parts := strings.SplitN(time24, ":", 2)

	if len(parts) != 2 {
		return time24
	}

	hours, err := strconv.Atoi(parts[0])

	if err != nil {
		return time24
	}

	period := "AM"

	if hours >= 12 {
		period = "PM"
	}

	hours12 := hours % 12

	if hours12 == 0 {
		hours12 = 12
	}

	return fmt.Sprintf("%d:%s %s", hours12, parts[1], period)
}
