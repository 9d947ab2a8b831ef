package respond

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// insights derives prose observations from the result table without any
// model involvement: the row count, mean/min/max and twice-the-mean
// outliers per numeric column, date ranges for timestamp columns, and the
// set of column names. Columns are visited in sorted order so the output
// is stable.
func insights(rows []map[string]any, returned int) []string {
	out := []string{rowCountInsight(returned)}
	cols := columnNames(rows)
	if len(cols) == 0 {
		return out
	}
	for _, col := range cols {
		if vals, ok := numericColumn(rows, col); ok {
			out = append(out, numericInsights(col, vals)...)
			continue
		}
		if from, to, ok := timeRange(rows, col); ok {
			out = append(out, fmt.Sprintf("%s spans %s to %s.", col, from.Format("2006-01-02"), to.Format("2006-01-02")))
		}
	}
	out = append(out, "Columns returned: "+strings.Join(cols, ", ")+".")
	return out
}

func rowCountInsight(n int) string {
	if n == 1 {
		return "The result contains 1 row."
	}
	return fmt.Sprintf("The result contains %d rows.", n)
}

// columnNames returns the sorted union of keys across all rows.
func columnNames(rows []map[string]any) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// numericColumn returns the column's values when every present cell is a
// number. Booleans and numeric strings do not count.
func numericColumn(rows []map[string]any, col string) ([]float64, bool) {
	var vals []float64
	for _, row := range rows {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		f, ok := asFloat(v)
		if !ok {
			return nil, false
		}
		vals = append(vals, f)
	}
	return vals, len(vals) > 0
}

func asFloat(v any) (float64, bool) {
	switch tv := v.(type) {
	case float64:
		return tv, true
	case float32:
		return float64(tv), true
	case int:
		return float64(tv), true
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return cast.ToFloat64(tv), true
	}
	return 0, false
}

func numericInsights(col string, vals []float64) []string {
	mean, low, high := summarize(vals)
	out := []string{fmt.Sprintf("%s averages %s (min %s, max %s).", col, fmtNum(mean), fmtNum(low), fmtNum(high))}
	if mean > 0 {
		var outliers []string
		for _, v := range vals {
			if v > 2*mean {
				outliers = append(outliers, fmtNum(v))
			}
		}
		if len(outliers) > 0 {
			out = append(out, fmt.Sprintf("%s has outliers above twice the mean: %s.", col, strings.Join(outliers, ", ")))
		}
	}
	return out
}

func summarize(vals []float64) (mean, low, high float64) {
	low, high = vals[0], vals[0]
	var sum float64
	for _, v := range vals {
		sum += v
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	return sum / float64(len(vals)), low, high
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// timeRange detects a timestamp column: the name must look temporal and
// every present value must parse as a time.
func timeRange(rows []map[string]any, col string) (time.Time, time.Time, bool) {
	if !temporalColumn(col) {
		return time.Time{}, time.Time{}, false
	}
	var low, high time.Time
	found := false
	for _, row := range rows {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		ts, ok := asTime(v)
		if !ok {
			return time.Time{}, time.Time{}, false
		}
		if !found || ts.Before(low) {
			low = ts
		}
		if !found || ts.After(high) {
			high = ts
		}
		found = true
	}
	return low, high, found
}

func asTime(v any) (time.Time, bool) {
	switch tv := v.(type) {
	case time.Time:
		return tv, true
	case string:
		ts, err := cast.StringToDateInDefaultLocation(tv, time.UTC)
		return ts, err == nil
	}
	return time.Time{}, false
}

// temporalColumn matches the column-name patterns used for both the
// timestamp insight and the line-chart trigger.
func temporalColumn(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "date") || strings.Contains(n, "time") || strings.HasSuffix(n, "_at")
}
