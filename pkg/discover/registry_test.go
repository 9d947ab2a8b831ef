package discover_test

import (
	"testing"

	"github.com/MrWong99/graphseer/pkg/discover"
	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/errs"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()

	reg := discover.NewRegistry()
	if err := reg.Register(workOrderDesc()); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	desc, ok := reg.Get("WorkOrder")
	if !ok || desc.Table != "work_orders" {
		t.Fatalf("Get(WorkOrder) = %+v, %v; want registered descriptor", desc, ok)
	}
	if _, ok := reg.Get("WORKORDER"); !ok {
		t.Error("Get() is case-sensitive, want case-insensitive lookup")
	}
	if _, ok := reg.Get("Phantom"); ok {
		t.Error("Get(Phantom) reported a hit for an unregistered entity")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	t.Parallel()

	reg := discover.NewRegistry()
	if err := reg.Register(workOrderDesc()); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	err := reg.Register(&entity.Descriptor{Name: "workorder", Table: "other"})
	if err == nil {
		t.Fatal("Register() accepted a duplicate name in different casing")
	}
	if !errs.IsKind(err, errs.KindConfiguration) {
		t.Errorf("kind = %v, want configuration", errs.KindOf(err))
	}
}

func TestRegistry_RejectsInvalidNames(t *testing.T) {
	t.Parallel()

	reg := discover.NewRegistry()

	if err := reg.Register(nil); err == nil {
		t.Error("Register(nil) accepted a nil descriptor")
	}

	err := reg.Register(&entity.Descriptor{Name: "Work Order"})
	if err == nil {
		t.Fatal("Register() accepted a name with a space")
	}
	if !errs.IsKind(err, errs.KindInjectionDefense) {
		t.Errorf("kind = %v, want injection_defense", errs.KindOf(err))
	}

	err = reg.Register(&entity.Descriptor{Name: "Order", Table: "orders; --"})
	if err == nil {
		t.Fatal("Register() accepted an invalid table name")
	}
	if !errs.IsKind(err, errs.KindInjectionDefense) {
		t.Errorf("kind = %v, want injection_defense", errs.KindOf(err))
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	t.Parallel()

	reg := discover.NewRegistry()
	for _, name := range []string{"Technician", "Depot", "WorkOrder"} {
		if err := reg.Register(&entity.Descriptor{Name: name, Table: "t_" + name}); err != nil {
			t.Fatalf("Register(%s) unexpected error: %v", name, err)
		}
	}

	names := reg.Names()
	want := []string{"Depot", "Technician", "WorkOrder"}
	assertStrings(t, "Names()", names, want)
}

func TestRegistry_RegisterScope(t *testing.T) {
	t.Parallel()

	reg := discover.NewRegistry()
	if err := reg.Register(workOrderDesc()); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	build := func(q *entity.ScopeQuery) { q.Where("status", entity.OpEquals, "open") }
	if err := reg.RegisterScope("workorder", "open", build); err != nil {
		t.Fatalf("RegisterScope() unexpected error: %v", err)
	}

	desc, _ := reg.Get("WorkOrder")
	if _, ok := desc.Scopes["open"]; !ok {
		t.Errorf("Scopes = %v, want builder attached under 'open'", desc.Scopes)
	}

	if err := reg.RegisterScope("Phantom", "any", build); err == nil {
		t.Error("RegisterScope() accepted an unregistered entity")
	}
	if err := reg.RegisterScope("WorkOrder", "nil", nil); err == nil {
		t.Error("RegisterScope() accepted a nil builder")
	}
}

func TestRegistry_Resolver(t *testing.T) {
	t.Parallel()

	reg := discover.NewRegistry()
	if err := reg.Register(workOrderDesc()); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}
	resolve := reg.Resolver()

	edge, target, ok := resolve("WorkOrder", "technician")
	if !ok {
		t.Fatal("resolve(WorkOrder, technician) = !ok, want hit")
	}
	if edge != "TECHNICIAN" || target != "Technician" {
		t.Errorf("resolve = (%q, %q), want (TECHNICIAN, Technician)", edge, target)
	}

	if _, _, ok := resolve("WorkOrder", "phantom"); ok {
		t.Error("resolve reported a hit for an unknown relation")
	}
	if _, _, ok := resolve("Phantom", "technician"); ok {
		t.Error("resolve reported a hit for an unknown label")
	}
}
