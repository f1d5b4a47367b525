package locks

import (
	"sync"
	"testing"
)

func TestLockSerializesSameKey(t *testing.T) {
	s := NewSet()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock("s:1")
			v := counter
			v++
			counter = v
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}
	if n := s.Len(); n != 0 {
		t.Fatalf("expected lock entries to be released, %d left", n)
	}
}

func TestLockDistinctKeysDoNotBlock(t *testing.T) {
	s := NewSet()
	unlockA := s.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := s.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
	if s.Len() != 1 {
		t.Fatalf("expected only key a to remain, got %d entries", s.Len())
	}
	unlockA()
}
