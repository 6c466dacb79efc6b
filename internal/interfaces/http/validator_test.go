package http

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidClientID(t *testing.T) {
	for _, id := range []string{"33612345678", "+33612345678", "33612345678@s.whatsapp.net", "client_1", "a:b-c.d"} {
		assert.True(t, ValidClientID(id), id)
	}
	for _, id := range []string{"", "336 123", "bad$id", "<script>", strings.Repeat("1", MaxClientIDLength+1)} {
		assert.False(t, ValidClientID(id), id)
	}
}

func TestValidTaskName(t *testing.T) {
	assert.True(t, ValidTaskName("morning_briefing"))
	assert.True(t, ValidTaskName("follow_up_alert:5f0c-11"))
	assert.False(t, ValidTaskName("drop table"))
	assert.False(t, ValidTaskName(""))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("a\x00bc"))
	assert.Equal(t, "ok", SanitizeString("o\xffk"))
	assert.Equal(t, "Ça va ?", SanitizeString("Ça va ?"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "héll", TruncateString("héllo", 4))
	assert.Equal(t, "hi", TruncateString("hi", 4))
}
