package service

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"infinitetms/internal/apperr"
	"infinitetms/internal/models"
)

// normalizeMonth accepts "march", "Mar", "3" or "03" and returns the full
// English month name. An empty value yields def.
func normalizeMonth(raw string, def time.Month) (string, error) {
	m := strings.TrimSpace(raw)
	if m == "" {
		return def.String(), nil
	}
	if n, err := strconv.Atoi(m); err == nil {
		if n < 1 || n > 12 {
			return "", apperr.Validation("month must be between 1 and 12")
		}
		return time.Month(n).String(), nil
	}
	if len(m) >= 3 {
		for mo := time.January; mo <= time.December; mo++ {
			name := mo.String()
			if len(m) <= len(name) && strings.EqualFold(m, name[:len(m)]) {
				return name, nil
			}
		}
	}
	return "", apperr.Validation("unknown month " + raw)
}

func monthNumber(name string) int {
	for mo := time.January; mo <= time.December; mo++ {
		if mo.String() == name {
			return int(mo)
		}
	}
	return 0
}

type PeriodGroup struct {
	Period  string          `json:"period"`
	Month   string          `json:"month"`
	Year    int             `json:"year"`
	Tickets []models.Ticket `json:"tickets"`
}

// GroupByPeriod buckets tickets by "Month Year", newest period first.
// Tickets keep their relative order inside a bucket.
func GroupByPeriod(tickets []models.Ticket) []PeriodGroup {
	idx := map[string]int{}
	var groups []PeriodGroup
	for _, t := range tickets {
		key := t.Period()
		i, ok := idx[key]
		if !ok {
			i = len(groups)
			idx[key] = i
			groups = append(groups, PeriodGroup{Period: key, Month: t.Month, Year: t.Year})
		}
		groups[i].Tickets = append(groups[i].Tickets, t)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		if groups[a].Year != groups[b].Year {
			return groups[a].Year > groups[b].Year
		}
		return monthNumber(groups[a].Month) > monthNumber(groups[b].Month)
	})
	return groups
}
