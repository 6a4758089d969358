package async

import (
	"strings"
	"testing"
	"time"
)

func TestJob(t *testing.T) {
	done := Job(func() {
		time.Sleep(100 * time.Millisecond)
	})

	select {
	case <-done:
		// Test passed
	case <-time.After(time.Second):
		t.Fatal("TestJob timed out")
	}
}

func TestLineFrom(t *testing.T) {
	select {
	case <-LineFrom(strings.NewReader("\n")):
	case <-time.After(time.Second):
		t.Fatal("line was not detected")
	}
}
