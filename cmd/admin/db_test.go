package main

import (
	"reflect"
	"testing"
)

func TestRegionFilter(t *testing.T) {
	where, params := regionFilter("", "")
	if where != "" || params != nil {
		t.Fatalf("empty filter: %q %v", where, params)
	}
	where, params = regionFilter("w1", "nether")
	if where != " WHERE world_id = ? AND dimension = ?" {
		t.Fatalf("where: got %q", where)
	}
	if !reflect.DeepEqual(params, []any{"w1", "nether"}) {
		t.Fatalf("params: got %v", params)
	}
}

func TestParseFloats(t *testing.T) {
	got, err := parseFloats("1, 2.5,-3", 3)
	if err != nil || !reflect.DeepEqual(got, []float64{1, 2.5, -3}) {
		t.Fatalf("parseFloats: %v %v", got, err)
	}
	if _, err := parseFloats("1,2", 3); err == nil {
		t.Fatalf("expected count error")
	}
}
