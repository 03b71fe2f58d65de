package recognition

import (
	"sync"
	"testing"
)

func TestFragmentBuffer_FlushJoinsFragments(t *testing.T) {
	buf := NewFragmentBuffer()
	buf.Add("What is")
	buf.Add(" the VAT rate? ")

	if buf.Len() != 2 {
		t.Fatalf("expected Len() == 2, got %d", buf.Len())
	}

	got := buf.Flush()
	if got != "What is the VAT rate?" {
		t.Fatalf("unexpected flush result %q", got)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected buffer empty after flush, got Len() == %d", buf.Len())
	}
}

func TestFragmentBuffer_IgnoresBlankFragments(t *testing.T) {
	buf := NewFragmentBuffer()
	buf.Add("")
	buf.Add("   ")
	if buf.Len() != 0 {
		t.Fatalf("expected blank fragments to be dropped, got Len() == %d", buf.Len())
	}
	if got := buf.Flush(); got != "" {
		t.Fatalf("expected empty flush, got %q", got)
	}
}

func TestFragmentBuffer_ConcurrentAccess(t *testing.T) {
	buf := NewFragmentBuffer()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf.Add("word")
		}()
	}
	wg.Wait()

	if buf.Len() != 50 {
		t.Fatalf("expected 50 fragments, got %d", buf.Len())
	}
}
