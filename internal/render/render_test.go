package render

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildDocument(t *testing.T) {
	doc := BuildDocument("<h1>Hello</h1>", ".prose { background: transparent; }")

	require.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	require.Contains(t, doc, `<meta charset="UTF-8">`)
	require.Contains(t, doc, "<h1>Hello</h1>")
	require.Contains(t, doc, "font-family: system-ui")

	// caller CSS comes after the base styling so overrides win
	base := strings.Index(doc, "font-family: system-ui")
	extra := strings.Index(doc, ".prose { background: transparent; }")
	require.Greater(t, extra, base)
}

func TestBuildDocument_NoExtraCSS(t *testing.T) {
	doc := BuildDocument("<p>x</p>", "")
	require.Contains(t, doc, "<p>x</p>")
	require.Contains(t, doc, "</style></head><body>")
}

func TestMapRenderErr(t *testing.T) {
	require.ErrorIs(t, mapRenderErr(context.DeadlineExceeded), ErrRenderTimeout)

	cause := errors.New("chrome crashed")
	err := mapRenderErr(cause)
	var re *RenderError
	require.ErrorAs(t, err, &re)
	require.ErrorIs(t, err, cause)
}
