package webhook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSignatureKnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	assert.Equal(t,
		"5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
		ComputeSignature("Jefe", "what do ya want for nothing?"),
	)
}

func TestVerifySignature(t *testing.T) {
	sig := ComputeSignature("api-key", "wd_1")

	assert.True(t, VerifySignature("api-key", "wd_1", sig))
	assert.True(t, VerifySignature("api-key", "wd_1", "sha256="+sig))
	assert.True(t, VerifySignature("api-key", "wd_1", " "+strings.ToUpper(sig)+" "))

	assert.False(t, VerifySignature("other-key", "wd_1", sig))
	assert.False(t, VerifySignature("api-key", "wd_2", sig))
	assert.False(t, VerifySignature("api-key", "wd_1", "not-hex"))
	assert.False(t, VerifySignature("api-key", "wd_1", ""))
	assert.False(t, VerifySignature("", "wd_1", sig))
}
