package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/leadform/flow"
)

func TestMarkdown(t *testing.T) {
	html, err := Markdown("Reply **today**\nor visit https://example.com")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>today</strong>")
	assert.Contains(t, html, "<br")
	assert.Contains(t, html, `<a href="https://example.com">`)

	html, err = Markdown("<script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")

	html, err = Markdown("")
	require.NoError(t, err)
	assert.Empty(t, html)
}

func TestTemplatesAreValidForms(t *testing.T) {
	list := Templates()
	require.Len(t, list, 4)
	assert.Equal(t, "contact", list[0].Slug)

	for _, tpl := range list {
		t.Run(tpl.Slug, func(t *testing.T) {
			assert.NoError(t, flow.Validate(tpl.Form()))
		})
	}
}

func TestTemplateFormIsACopy(t *testing.T) {
	tpl, ok := LookupTemplate("lead-capture")
	require.True(t, ok)

	f := tpl.Form()
	f.Questions[4].Options[0] = "changed"
	f.Blocks[0].Title = "changed"

	fresh := tpl.Form()
	assert.Equal(t, "Under $1k", fresh.Questions[4].Options[0])
	assert.Equal(t, "About you", fresh.Blocks[0].Title)

	_, ok = LookupTemplate("nope")
	assert.False(t, ok)
}

func TestTemplateBranching(t *testing.T) {
	tpl, _ := LookupTemplate("event-registration")
	path, err := flow.New(tpl.Form()).Walk(map[string]any{"attendance": "Online"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "email", "attendance", "questions"}, path)

	tpl, _ = LookupTemplate("feedback")
	path, err = flow.New(tpl.Form()).Walk(map[string]any{"score": "Unsatisfied"})
	require.NoError(t, err)
	assert.Equal(t, []string{"score", "improve", "email"}, path)

	path, err = flow.New(tpl.Form()).Walk(map[string]any{"score": "Satisfied"})
	require.NoError(t, err)
	assert.Equal(t, []string{"score", "email"}, path)
}
