package models

import (
	"testing"
	"time"

	shared "FleetGuard/internal/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCompletionRefs(t *testing.T) {
	record := NewCommandRecord("id-1", "d1",
		shared.ServiceActionPayload{Service: "nginx", Action: shared.ServiceRestart}, time.Now())

	bodies := map[string]string{
		"by id":           `["id-1"]`,
		"by dedup key":    `[{"dedup_key":"` + record.DedupKey + `"}]`,
		"by value":        `[{"service":"nginx","action":"restart"}]`,
		"echoed record":   `[{"class":"service-action","payload":{"service":"nginx","action":"restart"}}]`,
		"singleton":       `{"id":"id-1"}`,
		"singleton value": `{"service":"nginx","action":"restart"}`,
	}

	for name, body := range bodies {
		refs, err := ParseCompletionRefs(shared.ClassServiceAction, []byte(body))
		require.NoError(t, err, name)
		require.Len(t, refs, 1, name)
		assert.True(t, refs[0].Matches(record), name)
	}
}

func TestParseCompletionRefsNoMatch(t *testing.T) {
	record := NewCommandRecord("id-1", "d1",
		shared.ServiceActionPayload{Service: "nginx", Action: shared.ServiceRestart}, time.Now())

	refs, err := ParseCompletionRefs(shared.ClassServiceAction, []byte(`[{"service":"nginx","action":"stop"}, "id-2"]`))
	require.NoError(t, err)
	require.Len(t, refs, 2)
	for _, ref := range refs {
		assert.False(t, ref.Matches(record))
	}
}

func TestParseCompletionRefsMalformed(t *testing.T) {
	for _, body := range []string{``, `"id-1"`, `42`, `[42]`, `[{"service":"nginx","action":"explode"}]`, `[`} {
		_, err := ParseCompletionRefs(shared.ClassServiceAction, []byte(body))
		assert.Error(t, err, body)
	}

	_, err := ParseCompletionRefs(shared.ClassServiceAction, []byte(`7`))
	assert.ErrorIs(t, err, ErrMalformedReport)
}
