package replicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorDetail(t *testing.T) {
	t.Parallel()

	t.Run("prefers detail field", func(t *testing.T) {
		got := errorDetail([]byte(`{"title":"Unprocessable","detail":"input.image is required"}`))
		assert.Equal(t, "input.image is required", got)
	})

	t.Run("falls back to error field", func(t *testing.T) {
		got := errorDetail([]byte(`{"error":"out of credit"}`))
		assert.Equal(t, "out of credit", got)
	})

	t.Run("falls back to title field", func(t *testing.T) {
		got := errorDetail([]byte(`{"title":"Bad Request"}`))
		assert.Equal(t, "Bad Request", got)
	})

	t.Run("non-JSON body is returned trimmed", func(t *testing.T) {
		got := errorDetail([]byte("  gateway exploded  "))
		assert.Equal(t, "gateway exploded", got)
	})

	t.Run("long bodies are truncated", func(t *testing.T) {
		long := make([]byte, 500)
		for i := range long {
			long[i] = 'x'
		}
		assert.Len(t, errorDetail(long), 200)
	})
}

func TestScrapeInvalidFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "dotted input paths",
			body: `{"detail":"input.image is required"}`,
			want: []string{"image"},
		},
		{
			name: "multiple fields deduplicated and sorted",
			body: `{"detail":"input.seed is invalid, input.image is required, input.image must be a URL"}`,
			want: []string{"image", "seed"},
		},
		{
			name: "quoted field with required suffix",
			body: `{"detail":"'prompt' is required"}`,
			want: []string{"prompt"},
		},
		{
			name: "missing field phrasing",
			body: `{"detail":"missing field 'duration'"}`,
			want: []string{"duration"},
		},
		{
			name: "no recognizable fields",
			body: `{"detail":"the request could not be processed"}`,
			want: nil,
		},
		{
			name: "empty body",
			body: ``,
			want: nil,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, scrapeInvalidFields([]byte(tc.body)))
		})
	}
}
