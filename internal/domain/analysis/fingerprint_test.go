package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	content := "fn main() { println!(\"hello\"); }"
	assert.Equal(t, Fingerprint(content), Fingerprint(content))
	assert.Len(t, Fingerprint(content), 64)
}

func TestFingerprintDistinguishesContent(t *testing.T) {
	assert.NotEqual(t, Fingerprint("a"), Fingerprint("b"))
	assert.NotEqual(t, Fingerprint(""), Fingerprint(" "))
}
