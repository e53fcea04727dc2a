package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hasher := NewPasswordHasher(DefaultPasswordPolicy())

	hash, err := hasher.Hash("Tr0ub4dor&Horse")
	require.NoError(t, err)
	require.NotEqual(t, "Tr0ub4dor&Horse", hash)

	assert.True(t, hasher.Verify("Tr0ub4dor&Horse", hash))
	assert.False(t, hasher.Verify("Tr0ub4dor&horse", hash))
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher := NewPasswordHasher(DefaultPasswordPolicy())
	assert.False(t, hasher.Verify("whatever", "not-a-bcrypt-hash"))
	assert.False(t, hasher.Verify("whatever", ""))
}

func TestHashesAreSalted(t *testing.T) {
	hasher := NewPasswordHasher(DefaultPasswordPolicy())

	first, err := hasher.Hash("Tr0ub4dor&Horse")
	require.NoError(t, err)
	second, err := hasher.Hash("Tr0ub4dor&Horse")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestValidateStrength(t *testing.T) {
	hasher := NewPasswordHasher(DefaultPasswordPolicy())

	tests := []struct {
		name     string
		password string
		ok       bool
		contains string
	}{
		{"valid", "Tr0ub4dor&Horse", true, ""},
		{"too short", "Sh0rt!", false, "at least 12 characters"},
		{"no uppercase", "tr0ub4dor&horse", false, "uppercase"},
		{"no lowercase", "TR0UB4DOR&HORSE", false, "lowercase"},
		{"no digit", "Troubador&Horse", false, "digit"},
		{"no special", "Tr0ub4dorHorse", false, "special"},
		{"repeated run", "Tr0ub4dor&aaaHorse", false, "predictable"},
		{"numeric run", "Tr0ub4dor&123Horse", false, "predictable"},
		{"alphabetic run", "Tr0ub4dor&xyzHorse", false, "predictable"},
		{"alphabetic run uppercased", "Tr0ub4dor&XYZHorse", false, "predictable"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, reasons := hasher.ValidateStrength(tc.password)
			assert.Equal(t, tc.ok, ok)
			if tc.contains != "" {
				assert.Contains(t, strings.Join(reasons, "; "), tc.contains)
			}
		})
	}
}

func TestHasRepeatedRun(t *testing.T) {
	assert.True(t, hasRepeatedRun("aaa"))
	assert.True(t, hasRepeatedRun("xAAAy"))
	assert.True(t, hasRepeatedRun("begin...end"))
	assert.False(t, hasRepeatedRun("aa"))
	assert.False(t, hasRepeatedRun("ababab"))
	assert.False(t, hasRepeatedRun(""))
}

func TestValidateStrengthReportsAllViolations(t *testing.T) {
	hasher := NewPasswordHasher(DefaultPasswordPolicy())

	ok, reasons := hasher.ValidateStrength("abc")
	require.False(t, ok)
	// length, uppercase, digit, special and the sequential "abc" pattern
	assert.Len(t, reasons, 5)
}

func TestValidateStrengthRespectsPolicy(t *testing.T) {
	hasher := NewPasswordHasher(PasswordPolicy{MinLength: 8})

	ok, reasons := hasher.ValidateStrength("plainlow")
	assert.True(t, ok, "relaxed policy should accept: %v", reasons)
}
