package emitter

import (
	"testing"
	"time"

	"github.com/flowgraph/flowgraph/pkg/models"
)

func item(key string, state models.PipelineState) models.ProcessingItem {
	return models.ProcessingItem{NodeKey: key, State: state}
}

func TestEmit_PreservesOrder(t *testing.T) {
	e := New()

	e.Emit(item("a", models.PipelineStateRunning))
	e.Emit(item("a", models.PipelineStateCompleted))
	e.Emit(item("b", models.PipelineStateRunning))
	e.Close()

	var got []string
	for it := range e.Items() {
		got = append(got, it.NodeKey+":"+string(it.State))
	}

	want := []string{"a:running", "a:completed", "b:running"}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestEmit_NeverBlocksProducer(t *testing.T) {
	e := New()

	done := make(chan struct{})

	go func() {
		defer close(done)

		// Nothing consumes until all emits finish.
		for i := 0; i < 10_000; i++ {
			e.Emit(item("n", models.PipelineStateRunning))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producer blocked on unbounded queue")
	}

	e.Close()

	count := 0
	for range e.Items() {
		count++
	}

	if count != 10_000 {
		t.Errorf("expected 10000 items delivered, got %d", count)
	}
}

func TestClose_DrainsThenCloses(t *testing.T) {
	e := New()

	e.Emit(item("a", models.PipelineStateRunning))
	e.Close()
	e.Emit(item("b", models.PipelineStateRunning)) // dropped

	count := 0
	for range e.Items() {
		count++
	}

	if count != 1 {
		t.Errorf("expected only pre-close items, got %d", count)
	}
}
