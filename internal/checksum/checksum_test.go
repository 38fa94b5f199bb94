package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("")
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("different inputs share a digest")
	}
}

func TestMatches(t *testing.T) {
	sum := Sum([]byte("---\ntags:\n  - a\n---\n"))
	if !Matches([]byte("---\ntags:\n  - a\n---\n"), sum) {
		t.Error("same content should match")
	}
	if Matches([]byte("---\ntags:\n  - b\n---\n"), sum) {
		t.Error("edited content should not match")
	}
}
