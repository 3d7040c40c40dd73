package cmd

import (
	"testing"
	"time"

	"github.com/yourorg/dbcut/internal/entity"
)

func TestEncodeScalarTimeUsesTrailingZ(t *testing.T) {
	ts := time.Date(2026, 3, 4, 12, 30, 0, 0, time.FixedZone("UTC", 0))
	got := encodeScalar(ts)
	want := "2026-03-04T12:30:00Z"
	if got != want {
		t.Errorf("encodeScalar(time) = %q, want %q", got, want)
	}
}

func TestEncodeScalarValidUTF8Bytes(t *testing.T) {
	got := encodeScalar([]byte("hello"))
	if got != "hello" {
		t.Errorf("encodeScalar([]byte) = %v, want %q", got, "hello")
	}
}

func TestEncodeScalarInvalidUTF8BytesPassThrough(t *testing.T) {
	invalid := []byte{0xff, 0xfe, 0x00}
	got := encodeScalar(invalid)
	b, ok := got.([]byte)
	if !ok {
		t.Fatalf("expected invalid UTF-8 to pass through as []byte, got %T", got)
	}
	if string(b) != string(invalid) {
		t.Errorf("expected byte slice to be unchanged")
	}
}

func TestEncodeEntityOmitsEmptyRelationships(t *testing.T) {
	e := entity.New("orders", []string{"id", "status"})
	e.Set("id", 1)
	e.Set("status", "shipped")
	e.Children = map[string][]*entity.Entity{
		"customer":  {entity.New("customers", []string{"id"})},
		"line_item": {},
	}

	doc := encodeEntity(e)
	if _, ok := doc["customer"]; !ok {
		t.Error("expected customer relationship to be present")
	}
	if _, ok := doc["line_item"]; ok {
		t.Error("expected empty line_item relationship to be omitted, not emitted as null/empty")
	}
	if doc["id"] != 1 || doc["status"] != "shipped" {
		t.Errorf("unexpected scalar columns: %#v", doc)
	}
}
