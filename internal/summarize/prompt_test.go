package summarize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSummaryType(t *testing.T) {
	require.Equal(t, TypeVertical, ParseSummaryType("vertical"))
	require.Equal(t, TypeVertical, ParseSummaryType("standard"))
	require.Equal(t, TypeVertical, ParseSummaryType(""))
	require.Equal(t, TypeHorizontal, ParseSummaryType("horizontal"))
	require.Equal(t, TypeBullet, ParseSummaryType("bullet"))
}

func TestOrientation(t *testing.T) {
	require.Equal(t, "vertical", TypeVertical.Orientation())
	require.Equal(t, "vertical", TypeBullet.Orientation())
	require.Equal(t, "horizontal", TypeHorizontal.Orientation())
}

func TestPromptFor_DistinctPerType(t *testing.T) {
	v, h, b := PromptFor(TypeVertical), PromptFor(TypeHorizontal), PromptFor(TypeBullet)
	require.NotEqual(t, v, h)
	require.NotEqual(t, v, b)
	require.NotEqual(t, h, b)
	for _, p := range []string{v, h, b} {
		require.Contains(t, p, "HTML fragment")
	}
}
