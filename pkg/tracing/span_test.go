package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "")
	require.NotEmpty(t, root.TraceID)

	_, child := StartChildSpan(ctx, "baseline")
	child.SetAttr("candidates", 3)
	child.End()

	assert.Same(t, root, SpanFromContext(ctx))
	assert.Equal(t, root.TraceID, child.TraceID)
	require.Len(t, root.Children, 1)
	assert.Contains(t, root.ChildDurations(), "baseline")
	assert.Nil(t, SpanFromContext(context.Background()))
}

func TestChildSpanWithoutParent(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	span.End()
	assert.Empty(t, span.TraceID)
}
