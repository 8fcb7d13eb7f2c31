package resource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func constSensor(name string, value any) *Sensor {
	return NewSensor(Meta{Name: name, Type: "temp"}, func(context.Context) (any, error) {
		return value, nil
	})
}

func TestCollectionAddGet(t *testing.T) {
	c := NewCollection("resources")
	c.Add(constSensor("tempA", 70))

	r, err := c.Get("tempA")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if r.Name() != "tempA" {
		t.Errorf("Name() = %q, want %q", r.Name(), "tempA")
	}

	if _, err := c.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCollectionAddReplaces(t *testing.T) {
	c := NewCollection("resources")
	c.Add(constSensor("tempA", 70))
	c.Add(constSensor("tempA", 72))

	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
	r, _ := c.Get("tempA")
	v, _ := r.State(context.Background())
	if v != 72 {
		t.Errorf("State() = %v, want 72", v)
	}
}

func TestCollectionRemove(t *testing.T) {
	c := NewCollection("resources")
	c.Add(constSensor("tempA", 70))

	if !c.Remove("tempA") {
		t.Error("Remove(tempA) = false, want true")
	}
	if c.Remove("tempA") {
		t.Error("second Remove(tempA) = true, want false")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestCollectionValuesSorted(t *testing.T) {
	c := NewCollection("resources")
	for _, name := range []string{"c", "a", "b"} {
		c.Add(constSensor(name, 0))
	}

	names := c.Names()
	want := []string{"a", "b", "c"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}

	values := c.Values()
	for i := range want {
		if values[i].Name() != want[i] {
			t.Fatalf("Values()[%d] = %q, want %q", i, values[i].Name(), want[i])
		}
	}
}

func TestCollectionDump(t *testing.T) {
	inner := NewCollection("lights")
	inner.Add(constSensor("porch", 1))

	c := NewCollection("resources")
	c.Add(constSensor("tempA", 70))
	c.Add(inner)

	collapsed := c.Dump(false)
	if len(collapsed) != 2 {
		t.Fatalf("Dump(false) len = %d, want 2", len(collapsed))
	}
	for _, def := range collapsed {
		if len(def.Resources) != 0 {
			t.Errorf("Dump(false) %s has nested resources", def.Name)
		}
	}

	expanded := c.Dump(true)
	var lights Definition
	for _, def := range expanded {
		if def.Name == "lights" {
			lights = def
		}
	}
	if lights.Type != TypeCollection {
		t.Errorf("lights type = %q, want %q", lights.Type, TypeCollection)
	}
	if len(lights.Resources) != 1 || lights.Resources[0].Name != "porch" {
		t.Errorf("expanded lights = %+v, want one member porch", lights.Resources)
	}
}

func TestCollectionConcurrentAdd(t *testing.T) {
	c := NewCollection("resources")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Add(constSensor(fmt.Sprintf("s%02d", i), i))
			_ = c.Values()
			_ = c.Dump(true)
		}(i)
	}
	wg.Wait()

	if c.Len() != 50 {
		t.Errorf("Len() = %d, want 50", c.Len())
	}
}

func TestHasState(t *testing.T) {
	tests := []struct {
		typ  string
		want bool
	}{
		{"temp", true},
		{"", true},
		{TypeService, true},
		{TypeSchedule, false},
		{TypeCollection, false},
		{TypeTask, false},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			r := NewSensor(Meta{Name: "r", Type: tt.typ}, nil)
			if got := HasState(r); got != tt.want {
				t.Errorf("HasState(%q) = %v, want %v", tt.typ, got, tt.want)
			}
		})
	}
}
