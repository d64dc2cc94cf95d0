package cas

import (
	"strings"
	"testing"
)

func TestSum_Deterministic(t *testing.T) {
	data := []byte("Hello, CDN!")

	d1 := Sum(data)
	d2 := Sum(data)

	if d1 != d2 {
		t.Errorf("Expected identical digests, got %s and %s", d1, d2)
	}
	if len(d1) != HexLength {
		t.Errorf("Expected %d hex characters, got %d", HexLength, len(d1))
	}
	if d1 != Digest(strings.ToLower(string(d1))) {
		t.Errorf("Expected lowercase hex, got %s", d1)
	}
}

func TestSum_Empty(t *testing.T) {
	// SHA-256 of the empty byte sequence is well-defined.
	const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	if d := Sum([]byte{}); d != emptySHA256 {
		t.Errorf("Expected %s for empty input, got %s", emptySHA256, d)
	}
	// A nil slice is the same byte sequence as an empty one.
	if d := Sum(nil); d != emptySHA256 {
		t.Errorf("Expected %s for nil input, got %s", emptySHA256, d)
	}
}

func TestSum_DistinctInputs(t *testing.T) {
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("Expected distinct digests for distinct inputs")
	}
}

func TestDigest_Validate(t *testing.T) {
	valid := Sum([]byte("x"))
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid digest, got error: %v", err)
	}

	cases := []Digest{
		"",
		"abc",
		Digest(strings.Repeat("g", HexLength)),
		Digest(strings.ToUpper(string(valid))),
		valid + "0",
	}
	for _, d := range cases {
		if err := d.Validate(); err == nil {
			t.Errorf("Expected validation error for %q", d)
		}
	}
}

func TestParsePath_StripsExtension(t *testing.T) {
	d := Sum([]byte("payload"))

	for _, segment := range []string{string(d), string(d) + ".png", string(d) + ".tar.gz"} {
		parsed, err := ParsePath(segment)
		if err != nil {
			t.Fatalf("ParsePath(%q) failed: %v", segment, err)
		}
		if parsed != d {
			t.Errorf("ParsePath(%q) = %s, want %s", segment, parsed, d)
		}
	}
}

func TestParsePath_Invalid(t *testing.T) {
	for _, segment := range []string{"", "doesnotexist", "doesnotexist.png"} {
		if _, err := ParsePath(segment); err == nil {
			t.Errorf("Expected error for segment %q", segment)
		}
	}
}
