package summarize

// SummaryType selects the card layout the model is asked to produce.
type SummaryType string

const (
	TypeVertical   SummaryType = "vertical"
	TypeHorizontal SummaryType = "horizontal"
	TypeBullet     SummaryType = "bullet"
)

func ParseSummaryType(s string) SummaryType {
	switch SummaryType(s) {
	case TypeHorizontal:
		return TypeHorizontal
	case TypeBullet:
		return TypeBullet
	default:
		// "standard" and unknown values fall back to the vertical card
		return TypeVertical
	}
}

const htmlRules = `Output ONLY an HTML fragment (no <html>, <head> or <body> tags,
no markdown, no code fences). Use <h1>/<h2> for headings, <p> for paragraphs and
<ul>/<li> for lists. Keep the language of the source article.`

const verticalPrompt = `You summarize articles into a shareable vertical summary card.
Produce a concise title, a 2-3 sentence overview and the 3-5 most important takeaways.
The layout will be rendered at 720px width, so keep lines short.
` + htmlRules

const horizontalPrompt = `You summarize articles into a wide horizontal summary card.
Produce a concise title, a short overview and the key takeaways arranged so they read
well on a 1280px wide layout. Prefer two or three short sections over one long column.
` + htmlRules

const bulletPrompt = `You summarize articles into a bullet-point summary card.
Produce a one-line title followed by a single <ul> of 5-8 bullets, each one sentence,
ordered by importance. No overview paragraph.
` + htmlRules

// PromptFor returns the system prompt for the requested summary type.
func PromptFor(t SummaryType) string {
	switch t {
	case TypeHorizontal:
		return horizontalPrompt
	case TypeBullet:
		return bulletPrompt
	default:
		return verticalPrompt
	}
}

// Orientation maps the summary type to the rendered card orientation;
// bullet summaries use the vertical layout.
func (t SummaryType) Orientation() string {
	if t == TypeHorizontal {
		return "horizontal"
	}
	return "vertical"
}
