package errordata

import (
  "context"
  "testing"

  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
)

func TestErrorData(t *testing.T) {
  assert.Nil(t, GetErrorData(context.Background()))

  ctx := WithErrorData(context.Background())
  ed := GetErrorData(ctx)
  require.NotNil(t, ed)
  assert.False(t, ed.HasMessage())

  ed.SetMessage("boom")
  assert.True(t, GetErrorData(ctx).HasMessage())
  assert.Equal(t, "boom", GetErrorData(ctx).Message)
}
