package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanCNPJ(t *testing.T) {
	assert.Equal(t, "11222333000181", CleanCNPJ("11.222.333/0001-81"))
	assert.Equal(t, "11222333000181", CleanCNPJ("11222333000181"))
	assert.Equal(t, "", CleanCNPJ("abc"))
}

func TestAccountKey(t *testing.T) {
	assert.Equal(t, "11222333000181", AccountKey("11.222.333/0001-81"))
}

func TestSameCNPJ(t *testing.T) {
	assert.True(t, SameCNPJ("11.222.333/0001-81", "11222333000181"))
	assert.False(t, SameCNPJ("11222333000181", "99888777000166"))
	// Two garbage strings never compare equal.
	assert.False(t, SameCNPJ("abc", "def"))
}

func TestFormatCNPJ(t *testing.T) {
	assert.Equal(t, "11.222.333/0001-81", FormatCNPJ("11222333000181"))
	assert.Equal(t, "123", FormatCNPJ("123"))
}

func TestIsValidCNPJ(t *testing.T) {
	assert.True(t, IsValidCNPJ("11.222.333/0001-81"))
	assert.True(t, IsValidCNPJ("11222333000181"))
	assert.False(t, IsValidCNPJ("11222333000180"))
	assert.False(t, IsValidCNPJ("11111111111111"))
	assert.False(t, IsValidCNPJ("123"))
}
