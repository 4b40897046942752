package check

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/psaab/aelc/pkg/ael"
)

var varRefRE = regexp.MustCompile(`^\$\{([A-Za-z0-9_]+)\}$`)

// checkSwitch warns once for every known value of the switched variable no
// case arm handles. Switches with a default or pattern arm are exhaustive.
func (c *checker) checkSwitch(sw *ael.Switch) {
	if c.apps == nil {
		return
	}
	m := varRefRE.FindStringSubmatch(strings.TrimSpace(sw.Expr))
	if m == nil {
		return
	}
	values, ok := c.apps.Values(m[1])
	if !ok {
		return
	}
	covered := make(map[string]bool)
	for _, arm := range sw.Arms {
		switch a := arm.(type) {
		case *ael.Default, *ael.Pattern:
			return
		case *ael.Case:
			covered[a.Value] = true
		}
	}
	for _, v := range values {
		if !covered[v] {
			c.diags.Warnf(sw.Pos, "switch on %s has no case for the value %s", m[1], v)
		}
	}
}

var (
	weekdays = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}
	months   = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}
)

// checkTime validates the four time-window fields.
func (c *checker) checkTime(pos ael.Pos, ts ael.TimeSpec) {
	if msg := checkHours(ts.Hours); msg != "" {
		c.diags.Warnf(pos, "time range %q: %s", ts.Hours, msg)
	}
	if msg := checkRange(ts.DaysOfWeek, func(s string) bool { return indexOf(weekdays, s) >= 0 }); msg != "" {
		c.diags.Warnf(pos, "day of week %q: %s; use sun, mon, tue, wed, thu, fri or sat", ts.DaysOfWeek, msg)
	}
	if msg := checkRange(ts.DaysOfMonth, func(s string) bool {
		n, err := strconv.Atoi(s)
		return err == nil && n >= 1 && n <= 31
	}); msg != "" {
		c.diags.Warnf(pos, "day of month %q: %s; use 1 through 31", ts.DaysOfMonth, msg)
	}
	if msg := checkRange(ts.Months, func(s string) bool { return indexOf(months, s) >= 0 }); msg != "" {
		c.diags.Warnf(pos, "month %q: %s; use jan through dec", ts.Months, msg)
	}
}

func checkHours(s string) string {
	if s == "" || s == "*" {
		return ""
	}
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return "expected hh:mm-hh:mm"
	}
	for _, t := range []string{start, end} {
		h, m, ok := strings.Cut(strings.TrimSpace(t), ":")
		if !ok {
			return "expected hh:mm-hh:mm"
		}
		hour, err := strconv.Atoi(h)
		if err != nil || hour < 0 || hour > 23 {
			return "hour " + h + " is out of range"
		}
		minute, err := strconv.Atoi(m)
		if err != nil || minute < 0 || minute > 59 {
			return "minute " + m + " is out of range"
		}
	}
	return ""
}

// checkRange validates "a" or "a-b" where both ends satisfy valid.
func checkRange(s string, valid func(string) bool) string {
	if s == "" || s == "*" {
		return ""
	}
	parts := strings.Split(s, "-")
	if len(parts) > 2 {
		return "too many '-' separators"
	}
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if !valid(p) {
			return "invalid value " + p
		}
	}
	return ""
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
