package ctxutil

import (
	"context"
	"testing"
)

func TestDetachedKeepsTraceDropsCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	parent = WithTraceData(parent, &TraceData{TraceID: "t-1", RequestID: "r-1"})
	cancel()

	out := Detached(parent)
	if out.Err() != nil {
		t.Fatalf("detached ctx should not be canceled: %v", out.Err())
	}
	td := GetTraceData(out)
	if td == nil || td.TraceID != "t-1" || td.RequestID != "r-1" {
		t.Fatalf("trace data: want=t-1/r-1 got=%+v", td)
	}
}

func TestGetTraceDataMissing(t *testing.T) {
	if td := GetTraceData(context.Background()); td != nil {
		t.Fatalf("want nil got=%+v", td)
	}
}
