package wiki

import (
	"strings"

	"github.com/wikicite/archiver/internal/citetemplates"
)

// Citation is one citation-template instance extracted from page
// content, carrying everything task creation needs to build a source.
type Citation struct {
	TemplateName string
	Wikitext     string
	URL          string
	Dead         bool

	// AlreadyArchived is true when the template carries an archive-url
	// parameter; such citations need no verification.
	AlreadyArchived bool
}

// ExtractCitations finds all template invocations in content that the
// registry knows about and reports them in citation order. Templates the
// registry does not know are ignored at extraction time; only the write
// step treats an unknown template as an error.
func ExtractCitations(content string, registry *citetemplates.Registry) []Citation {
	var citations []Citation

	for _, call := range ParseTemplates(content) {
		tpl, err := registry.Resolve(call.Name)
		if err != nil {
			continue
		}

		url, _ := call.Param(append([]string{tpl.URLParam}, tpl.URLParamAliases...)...)

		_, archived := call.Param(tpl.ArchiveURLParam)

		dead := false
		if deadValue, ok := call.Param(append([]string{tpl.DeadParam}, tpl.DeadParamAliases...)...); ok {
			dead = isYesValue(deadValue)
		}

		citations = append(citations, Citation{
			TemplateName:    call.Name,
			Wikitext:        call.Wikitext,
			URL:             url,
			Dead:            dead,
			AlreadyArchived: archived,
		})
	}

	return citations
}

func isYesValue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "1", "да":
		return true
	default:
		return false
	}
}
