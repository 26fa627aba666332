package sync

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Period is a calendar month.
type Period struct {
	Year  int
	Month int // 1-12
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Period{}, fmt.Errorf("period %q: want YYYY-MM", s)
	}
	return Period{Year: t.Year(), Month: int(t.Month())}, nil
}

func (p Period) String() string {
	return fmt.Sprintf("%d-%02d", p.Year, p.Month)
}

func (p Period) month() string {
	return fmt.Sprintf("%02d", p.Month)
}

// Dir returns base/<year>/<MM>.
func (p Period) Dir(base string) string {
	return filepath.Join(base, strconv.Itoa(p.Year), p.month())
}

// Prefix returns base/<year>/<MM>/.
func (p Period) Prefix(base string) string {
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		return strconv.Itoa(p.Year) + "/" + p.month() + "/"
	}
	return base + "/" + strconv.Itoa(p.Year) + "/" + p.month() + "/"
}

// Periods lists the months from start through December of endYear.
func Periods(start Period, endYear int) ([]Period, error) {
	if start.Month < 1 || start.Month > 12 {
		return nil, fmt.Errorf("start month %d out of range", start.Month)
	}
	if endYear < start.Year {
		return nil, fmt.Errorf("end year %d is before start year %d", endYear, start.Year)
	}

	var out []Period
	for year := start.Year; year <= endYear; year++ {
		first := 1
		if year == start.Year {
			first = start.Month
		}
		for month := first; month <= 12; month++ {
			out = append(out, Period{Year: year, Month: month})
		}
	}
	return out, nil
}
