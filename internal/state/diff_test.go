package state

import (
	"encoding/json"
	"math/rand"
	"reflect"
	"strconv"
	"testing"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name           string
		prev           Snapshot
		next           Snapshot
		includeDeleted bool
		want           Snapshot
	}{
		{
			name: "unchanged",
			prev: Snapshot{"tempA": 70, "doorOpen": false},
			next: Snapshot{"tempA": 70, "doorOpen": false},
			want: Snapshot{},
		},
		{
			name: "changed value",
			prev: Snapshot{"tempA": 70, "doorOpen": false},
			next: Snapshot{"tempA": 72, "doorOpen": false},
			want: Snapshot{"tempA": 72},
		},
		{
			name: "new name",
			prev: Snapshot{"tempA": 70},
			next: Snapshot{"tempA": 70, "doorOpen": true},
			want: Snapshot{"doorOpen": true},
		},
		{
			name: "deleted name excluded",
			prev: Snapshot{"tempA": 70, "doorOpen": true},
			next: Snapshot{"tempA": 70},
			want: Snapshot{},
		},
		{
			name:           "deleted name included",
			prev:           Snapshot{"tempA": 70, "doorOpen": true},
			next:           Snapshot{"tempA": 70},
			includeDeleted: true,
			want:           Snapshot{"doorOpen": nil},
		},
		{
			name: "value becomes unknown",
			prev: Snapshot{"tempA": 70},
			next: Snapshot{"tempA": nil},
			want: Snapshot{"tempA": nil},
		},
		{
			name: "numbers compare by value",
			prev: Snapshot{"tempA": 70},
			next: Snapshot{"tempA": 70.0},
			want: Snapshot{},
		},
		{
			name: "nil prev",
			prev: nil,
			next: Snapshot{"tempA": 70},
			want: Snapshot{"tempA": 70},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.prev, tt.next, tt.includeDeleted)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Diff() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Overlaying the diff onto prev must reproduce next.
func TestDiffReconstructs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	values := []any{nil, true, false, 0, 1, 70, 72.5, "on", "off"}

	random := func() Snapshot {
		s := Snapshot{}
		for i := range 8 {
			if rng.Intn(3) == 0 {
				continue
			}
			s["r"+strconv.Itoa(i)] = values[rng.Intn(len(values))]
		}
		return s
	}

	for i := range 200 {
		prev, next := random(), random()
		diff := Diff(prev, next, true)

		got := prev.Clone()
		for name, v := range diff {
			got[name] = v
		}
		for name := range prev {
			if _, ok := next[name]; !ok {
				if got[name] != nil {
					t.Fatalf("case %d: deleted %s = %v, want nil", i, name, got[name])
				}
				delete(got, name)
			}
		}
		if !reflect.DeepEqual(got, next) {
			t.Fatalf("case %d: prev+diff = %v, want %v", i, got, next)
		}
		for name, v := range diff {
			if _, kept := next[name]; !kept {
				continue
			}
			if old, ok := prev[name]; ok && Equal(old, v) {
				t.Fatalf("case %d: diff carries unchanged %s", i, name)
			}
		}
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		a, b any
		want bool
	}{
		{70, 70, true},
		{70, 70.0, true},
		{int64(70), float32(70), true},
		{json.Number("70"), 70, true},
		{70, 71, false},
		{70, "70", false},
		{"on", "on", true},
		{nil, nil, true},
		{nil, 0, false},
		{true, 1, false},
		{[]any{1, "a"}, []any{1, "a"}, true},
	}
	for _, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("Equal(%#v, %#v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSameNames(t *testing.T) {
	if !SameNames([]string{"a", "b"}, []string{"b", "a"}) {
		t.Error("SameNames should ignore order")
	}
	if SameNames([]string{"a", "b"}, []string{"a"}) {
		t.Error("SameNames should detect a removed name")
	}
	if SameNames([]string{"a", "b"}, []string{"a", "c"}) {
		t.Error("SameNames should detect a renamed entry")
	}
}
