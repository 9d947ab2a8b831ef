package discover

import "testing"

func TestSnakeCase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"WorkOrder", "work_order"},
		{"workOrder", "work_order"},
		{"work_order", "work_order"},
		{"APIToken", "api_token"},
		{"HTMLBody", "html_body"},
		{"ID", "id"},
		{"V2Report", "v2_report"},
		{"scopeActive", "scope_active"},
		{"work_Order", "work_order"},
		{"simple", "simple"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := snakeCase(tt.in); got != tt.want {
				t.Errorf("snakeCase(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUpperSnake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"technician", "TECHNICIAN"},
		{"assignedTechnician", "ASSIGNED_TECHNICIAN"},
		{"work_order", "WORK_ORDER"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := upperSnake(tt.in); got != tt.want {
				t.Errorf("upperSnake(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPlural(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"workorder", "workorders"},
		{"WorkOrder", "WorkOrders"},
		{"status", "statuses"},
		{"box", "boxes"},
		{"quiz", "quizes"},
		{"branch", "branches"},
		{"dish", "dishes"},
		{"company", "companies"},
		{"Company", "Companies"},
		{"day", "days"},
		{"y", "ys"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := plural(tt.in); got != tt.want {
				t.Errorf("plural(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeScopeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"scopeActive", "active"},
		{"ScopeOverdue", "overdue"},
		{"scope_recent", "recent"},
		{"active", "active"},
		{"scopedItems", "scoped_items"},
		{"scope", "scope"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := normalizeScopeName(tt.in); got != tt.want {
				t.Errorf("normalizeScopeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
