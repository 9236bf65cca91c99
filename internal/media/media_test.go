package media

import (
	"testing"

	"github.com/John-Robertt/numscan/internal/domain"
)

func TestImageFrames(t *testing.T) {
	got := ImageFrames("/in/a.png")
	if len(got) != 1 || got[0] != (domain.Frame{Index: 0, Path: "/in/a.png"}) {
		t.Fatalf("期望单帧，实际：%#v", got)
	}
}
