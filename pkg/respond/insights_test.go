package respond

import (
	"reflect"
	"testing"
	"time"
)

func TestInsights_NumericColumn(t *testing.T) {
	t.Parallel()

	rows := []map[string]any{
		{"name": "Acme", "total": int64(41)},
		{"name": "Bolt", "total": int64(7)},
	}
	got := insights(rows, 2)
	want := []string{
		"The result contains 2 rows.",
		"total averages 24 (min 7, max 41).",
		"Columns returned: name, total.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("insights = %q, want %q", got, want)
	}
}

func TestInsights_Outliers(t *testing.T) {
	t.Parallel()

	rows := []map[string]any{
		{"value": int64(10)},
		{"value": int64(10)},
		{"value": int64(10)},
		{"value": int64(70)},
	}
	got := insights(rows, 4)
	want := []string{
		"The result contains 4 rows.",
		"value averages 25 (min 10, max 70).",
		"value has outliers above twice the mean: 70.",
		"Columns returned: value.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("insights = %q, want %q", got, want)
	}
}

func TestInsights_TimestampRange(t *testing.T) {
	t.Parallel()

	t.Run("string timestamps", func(t *testing.T) {
		t.Parallel()

		rows := []map[string]any{
			{"created_at": "2024-06-15T08:30:00Z"},
			{"created_at": "2024-03-01T10:00:00Z"},
		}
		got := insights(rows, 2)
		want := []string{
			"The result contains 2 rows.",
			"created_at spans 2024-03-01 to 2024-06-15.",
			"Columns returned: created_at.",
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("insights = %q, want %q", got, want)
		}
	})

	t.Run("time values", func(t *testing.T) {
		t.Parallel()

		rows := []map[string]any{
			{"updated_at": time.Date(2023, 9, 30, 12, 0, 0, 0, time.UTC)},
			{"updated_at": time.Date(2023, 5, 1, 8, 0, 0, 0, time.UTC)},
		}
		got := insights(rows, 2)
		want := []string{
			"The result contains 2 rows.",
			"updated_at spans 2023-05-01 to 2023-09-30.",
			"Columns returned: updated_at.",
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("insights = %q, want %q", got, want)
		}
	})
}

func TestInsights_MixedColumnIsNeither(t *testing.T) {
	t.Parallel()

	rows := []map[string]any{
		{"value": int64(3)},
		{"value": "n/a"},
	}
	got := insights(rows, 2)
	want := []string{
		"The result contains 2 rows.",
		"Columns returned: value.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("insights = %q, want %q", got, want)
	}
}

func TestInsights_BooleansAreNotNumeric(t *testing.T) {
	t.Parallel()

	got := insights([]map[string]any{{"flag": true}}, 1)
	want := []string{
		"The result contains 1 row.",
		"Columns returned: flag.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("insights = %q, want %q", got, want)
	}
}

func TestInsights_NoRows(t *testing.T) {
	t.Parallel()

	got := insights(nil, 0)
	want := []string{"The result contains 0 rows."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("insights = %q, want %q", got, want)
	}
}
