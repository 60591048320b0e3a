package usecases

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"notify-hub.backend/internal/domain/entities"
)

// UnsubscribeVariant selects the opt-out footer rendered into a message.
type UnsubscribeVariant string

const (
	// UnsubscribeFull renders a per-target and a global opt-out link.
	UnsubscribeFull UnsubscribeVariant = "FULL"
	// UnsubscribeProfileLink renders a single profile-management link.
	UnsubscribeProfileLink UnsubscribeVariant = "PROFILE_LINK"
	// UnsubscribeNone renders nothing. Used for non-marketing mail such as password resets.
	UnsubscribeNone UnsubscribeVariant = "NONE"
)

// Valid reports whether v is a known variant. The empty variant is valid and means NONE.
func (v UnsubscribeVariant) Valid() bool {
	switch v {
	case "", UnsubscribeFull, UnsubscribeProfileLink, UnsubscribeNone:
		return true
	}
	return false
}

// Reserved placeholder names. {{UNSUBSCRIBE}} renders the variant chosen by the caller.
const (
	placeholderUnsubscribe            = "UNSUBSCRIBE"
	placeholderUnsubscribeFull        = "UNSUBSCRIBE_FULL"
	placeholderUnsubscribeProfileLink = "UNSUBSCRIBE_PROFILE_LINK"
	placeholderUnsubscribeNone        = "UNSUBSCRIBE_NONE"
)

// UnsubscribeLinks are the opt-out URLs available to the footer fragments.
type UnsubscribeLinks struct {
	TargetURL  string
	GlobalURL  string
	ProfileURL string
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

type renderFormat int

const (
	formatText renderFormat = iota
	formatHTML
)

// RenderTemplate substitutes data into the template's subject, html and text.
// Unknown placeholders are left verbatim. When the template carries no unsubscribe
// placeholder and variant asks for a footer, the footer is appended to html and text.
func RenderTemplate(tpl *entities.EmailTemplate, data map[string]any, variant UnsubscribeVariant, links UnsubscribeLinks) entities.RenderedEmail {
	if tpl == nil {
		return entities.RenderedEmail{}
	}

	r := renderer{data: data, variant: variant, links: links}
	out := entities.RenderedEmail{
		Subject: r.render(tpl.Subject, formatText),
	}

	var found bool
	out.HTML, found = r.renderWithFooter(tpl.HTMLContent, formatHTML)
	if out.HTML != "" && !found {
		out.HTML = appendFooter(out.HTML, r.fragment(variant, formatHTML), "\n")
	}
	out.Text, found = r.renderWithFooter(tpl.TextContent, formatText)
	if out.Text != "" && !found {
		out.Text = appendFooter(out.Text, r.fragment(variant, formatText), "\n\n")
	}
	return out
}

type renderer struct {
	data    map[string]any
	variant UnsubscribeVariant
	links   UnsubscribeLinks
}

func (r renderer) render(s string, format renderFormat) string {
	out, _ := r.renderWithFooter(s, format)
	return out
}

// renderWithFooter performs a single scan so substituted values are never expanded again.
func (r renderer) renderWithFooter(s string, format renderFormat) (string, bool) {
	found := false
	out := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]

		if v, ok := reservedVariant(name, r.variant); ok {
			found = true
			return r.fragment(v, format)
		}

		value, ok := lookup(r.data, name)
		if !ok {
			return match
		}
		if format == formatHTML {
			return html.EscapeString(value)
		}
		return value
	})
	return out, found
}

func reservedVariant(name string, requested UnsubscribeVariant) (UnsubscribeVariant, bool) {
	switch name {
	case placeholderUnsubscribe:
		return requested, true
	case placeholderUnsubscribeFull:
		return UnsubscribeFull, true
	case placeholderUnsubscribeProfileLink:
		return UnsubscribeProfileLink, true
	case placeholderUnsubscribeNone:
		return UnsubscribeNone, true
	}
	return "", false
}

func (r renderer) fragment(v UnsubscribeVariant, format renderFormat) string {
	switch v {
	case UnsubscribeFull:
		var parts []string
		if r.links.TargetURL != "" {
			parts = append(parts, link(format, r.links.TargetURL, "Unsubscribe from these notifications"))
		}
		if r.links.GlobalURL != "" {
			parts = append(parts, link(format, r.links.GlobalURL, "Unsubscribe from all emails"))
		}
		return wrap(format, parts)
	case UnsubscribeProfileLink:
		if r.links.ProfileURL == "" {
			return ""
		}
		return wrap(format, []string{link(format, r.links.ProfileURL, "Manage your notification preferences")})
	default:
		return ""
	}
}

func link(format renderFormat, href, label string) string {
	if format == formatHTML {
		return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), label)
	}
	return label + ": " + href
}

func wrap(format renderFormat, parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	if format == formatHTML {
		return `<p class="unsubscribe">` + strings.Join(parts, " | ") + `</p>`
	}
	return strings.Join(parts, "\n")
}

func appendFooter(body, footer, sep string) string {
	if footer == "" {
		return body
	}
	return body + sep + footer
}

// lookup resolves name in data. Dotted names walk nested maps when no flat key matches.
func lookup(data map[string]any, name string) (string, bool) {
	if data == nil {
		return "", false
	}
	if v, ok := data[name]; ok {
		return stringify(v), true
	}

	var current any = data
	for _, part := range strings.Split(name, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = m[part]
		if !ok {
			return "", false
		}
	}
	return stringify(current), true
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
