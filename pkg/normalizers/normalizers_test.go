package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail(t *testing.T) {
	assert.Equal(t, "jane@example.com", Email("  Jane@Example.COM "))
	assert.Equal(t, "", Email("   "))
}

func TestPhone(t *testing.T) {
	assert.Equal(t, "15551234567", Phone("+1 (555) 123-4567"))
	assert.Equal(t, "", Phone("ext"))
}

func TestName(t *testing.T) {
	assert.Equal(t, "Jane Q Doe", Name("  Jane   Q\tDoe "))
	assert.Equal(t, "McLeod", Name("McLeod"))
}

func TestEmailPtr(t *testing.T) {
	email := " Jane@Example.com "
	assert.Equal(t, "jane@example.com", *EmailPtr(&email))

	empty := "  "
	assert.Nil(t, EmailPtr(&empty))
	assert.Nil(t, EmailPtr(nil))
}

func TestPhonePtr(t *testing.T) {
	phone := "555-123"
	assert.Equal(t, "555123", *PhonePtr(&phone))

	noDigits := "n/a"
	assert.Nil(t, PhonePtr(&noDigits))
	assert.Nil(t, PhonePtr(nil))
}

func TestNamePtr(t *testing.T) {
	name := " Jane  Doe "
	assert.Equal(t, "Jane Doe", *NamePtr(&name))
	assert.Nil(t, NamePtr(nil))
}
