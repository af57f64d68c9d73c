package utils

import (
	"reflect"
	"testing"
)

func TestSliceHelpers(t *testing.T) {
	nums := []int{1, 2, 3, 4, 5}

	even := Filter(nums, func(n int) bool { return n%2 == 0 })
	if !reflect.DeepEqual(even, []int{2, 4}) {
		t.Errorf("Filter returned %v", even)
	}

	doubled := Map(nums, func(n int) int { return n * 2 })
	if !reflect.DeepEqual(doubled, []int{2, 4, 6, 8, 10}) {
		t.Errorf("Map returned %v", doubled)
	}

	groups := GroupBy(nums, func(n int) bool { return n%2 == 0 })
	if len(groups[true]) != 2 || len(groups[false]) != 3 {
		t.Errorf("GroupBy returned %v", groups)
	}
}

func TestParseISOTime(t *testing.T) {
	for _, s := range []string{"2025-10-06T08:00:00Z", "2025-10-06T08:00:00.123Z", "2025-10-06 08:00:00", "2025-10-06"} {
		if _, err := ParseISOTime(s); err != nil {
			t.Errorf("ParseISOTime(%q): %v", s, err)
		}
	}
	if _, err := ParseISOTime("06/10/2025"); err == nil {
		t.Error("expected error for unsupported layout")
	}
}
