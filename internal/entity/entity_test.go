package entity

import (
	"bytes"
	"encoding/gob"
	"testing"
)

func TestOrderedValuesFollowsColumnOrder(t *testing.T) {
	e := New("orders", []string{"id", "status", "total"})
	e.Set("total", 42.5)
	e.Set("id", int64(1))
	e.Set("status", "shipped")

	got := e.OrderedValues()
	want := []interface{}{int64(1), "shipped", 42.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAddChildAndFlatten(t *testing.T) {
	order := New("orders", []string{"id"})
	order.Set("id", int64(1))
	item1 := New("order_items", []string{"id", "order_id"})
	item1.Set("id", int64(10))
	item2 := New("order_items", []string{"id", "order_id"})
	item2.Set("id", int64(11))
	order.AddChild("order_items", item1)
	order.AddChild("order_items", item2)

	batches := Flatten([]*Entity{order})
	if len(batches["orders"]) != 1 {
		t.Fatalf("expected 1 orders row, got %d", len(batches["orders"]))
	}
	if len(batches["order_items"]) != 2 {
		t.Fatalf("expected 2 order_items rows, got %d", len(batches["order_items"]))
	}
}

func TestGobRoundTrip(t *testing.T) {
	order := New("orders", []string{"id", "status"})
	order.Set("id", int64(7))
	order.Set("status", "pending")
	child := New("order_items", []string{"id"})
	child.Set("id", int64(99))
	order.AddChild("order_items", child)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(order); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded Entity
	if err := gob.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Table != "orders" || decoded.Values["status"] != "pending" {
		t.Errorf("unexpected round-tripped entity: %+v", decoded)
	}
	if len(decoded.Children["order_items"]) != 1 {
		t.Fatalf("expected 1 decoded child, got %d", len(decoded.Children["order_items"]))
	}
	if decoded.Children["order_items"][0].Values["id"] != int64(99) {
		t.Errorf("unexpected child id: %v", decoded.Children["order_items"][0].Values["id"])
	}
}

func TestGetMissingColumn(t *testing.T) {
	e := New("orders", []string{"id"})
	if _, ok := e.Get("nonexistent"); ok {
		t.Error("expected ok=false for an unset column")
	}
}
