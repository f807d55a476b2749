package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"receipt.pdf":          "receipt.pdf",
		"my receipt (1).jpg":   "my_receipt_1.jpg",
		"../../etc/passwd.txt": "passwd.txt",
		`C:\Users\me\scan.PNG`: "scan.PNG",
		"café.png":             "cafe.png",
		".hidden.txt":          "hidden.txt",
		"":                     "",
		"../..":                "",
		"???":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}

func TestAllowedExtAndHidden(t *testing.T) {
	assert.True(t, AllowedExt(".pdf"))
	assert.True(t, AllowedExt("JPG"))
	assert.True(t, AllowedExt("txt"))
	assert.False(t, AllowedExt(".exe"))
	assert.False(t, AllowedExt(""))

	assert.True(t, IsHidden("/a/b/.git"))
	assert.False(t, IsHidden("/a/b/c.txt"))
	assert.False(t, IsHidden("."))
}
