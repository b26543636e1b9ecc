package handlers

import (
  "encoding/json"
  "testing"

  "github.com/google/uuid"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
)

func TestParseConversationID(t *testing.T) {
  id := uuid.New()

  got := parseConversationID(json.RawMessage(`" ` + id.String() + ` "`))
  require.NotNil(t, got)
  assert.Equal(t, id, *got)

  for _, raw := range []string{``, `null`, `5`, `"5"`, `""`, `true`, `{"id":"` + id.String() + `"}`, `["` + id.String() + `"]`} {
    assert.Nil(t, parseConversationID(json.RawMessage(raw)), raw)
  }
}
