package service

import (
	"context"
	"testing"
)

func TestCoordinatorSetActiveSupersedes(t *testing.T) {
	coord := NewCoordinator()

	ctx1, cancel1 := context.WithCancel(context.Background())
	h1 := NewHandle(cancel1)
	coord.SetActive(h1)

	_, cancel2 := context.WithCancel(context.Background())
	h2 := NewHandle(cancel2)
	coord.SetActive(h2)

	if ctx1.Err() == nil {
		t.Fatal("setting a new active handle should cancel the previous one")
	}
}

func TestCoordinatorCancelActiveIdempotent(t *testing.T) {
	coord := NewCoordinator()

	ctx, cancel := context.WithCancel(context.Background())
	coord.SetActive(NewHandle(cancel))

	coord.CancelActive()
	if ctx.Err() == nil {
		t.Fatal("cancel active should cancel the handle's context")
	}
	// no handle left; must not panic
	coord.CancelActive()
}

func TestCoordinatorReleaseOnlyClearsOwnHandle(t *testing.T) {
	coord := NewCoordinator()

	_, cancel1 := context.WithCancel(context.Background())
	h1 := NewHandle(cancel1)
	coord.SetActive(h1)

	ctx2, cancel2 := context.WithCancel(context.Background())
	h2 := NewHandle(cancel2)
	coord.SetActive(h2)

	// h1 resolved on its own; releasing it must not drop h2.
	coord.Release(h1)
	coord.CancelActive()
	if ctx2.Err() == nil {
		t.Fatal("h2 should still have been the active handle")
	}
}
