// Package prompts renders the generation prompt sent to the model.
package prompts

import (
	"fmt"
	"strconv"
	"strings"

	"studio/internal/contenttypes"
	"studio/internal/core"
)

// DefaultCustomField is the single field a custom type produces when the
// caller does not name any.
const DefaultCustomField = "Text"

// Request is everything needed to render one prompt.
type Request struct {
	Type               core.ContentType
	Tone               string
	Sources            []string
	Count              int      // Overrides the platform default when > 0
	Instructions       []string // Stored writing instructions appended to the prompt
	CustomInstructions string   // Free-form brief for custom types
	CustomFields       []string // Field names for custom types
}

// template holds the per-platform wording.
type template struct {
	intro       string
	allowFewer  bool
	countLine   string // printf format taking count and type name
	fieldsLabel string
	format      []string
}

var templates = map[core.Platform]template{
	core.PlatformInstagram: {
		intro:       "Du skriver Instagram Stories-innehåll för Cefund. Cecilia är grundaren.",
		allowFewer:  true,
		countLine:   "Skapa upp till %d inlägg av typen %q.",
		fieldsLabel: "Varje inlägg ska ha dessa fält",
	},
	core.PlatformLinkedIn: {
		intro:       "Du skriver LinkedIn-inlägg för Cefund. Cecilia är grundaren.",
		allowFewer:  true,
		countLine:   "Skapa upp till %d LinkedIn-inlägg av typen %q.",
		fieldsLabel: "Varje inlägg ska ha dessa fält",
		format: []string{
			"FORMAT-KRAV FÖR LINKEDIN:",
			"- Varje fält ska vara 200-400 tecken (längre än Instagram)",
			"- Använd radbrytningar för läsbarhet",
			"- Använd emojis sparsamt men strategiskt (1-2 per fält)",
			"- Listor med punkter eller siffror där det passar",
			"- Hook-fältet ska vara en stark öppning som fångar uppmärksamhet i flödet",
			"- CTA ska uppmuntra till kommentarer, delningar eller klick",
			"- Skriv för en B2B-publik på LinkedIn",
		},
	},
	core.PlatformNewsletter: {
		intro:       "Du skriver nyhetsbrev för Cefund. Cecilia är grundaren.",
		countLine:   "Skapa %d komplett nyhetsbrev av typen %q.",
		fieldsLabel: "Varje nyhetsbrev ska ha dessa fält",
		format: []string{
			"FORMAT-KRAV FÖR NYHETSBREV:",
			"- Ämnesrad: Kort, lockande, max 60 tecken — ska få mottagaren att öppna mailet",
			"- Hook: 1-2 meningar som drar in läsaren direkt (50-100 ord)",
			"- Huvudinnehåll/Djupanalys: Det centrala innehållet (300-600 ord), välskrivet och engagerande",
			"- Tips/Case/Insikt: Konkret och värdefullt (100-200 ord)",
			"- CTA: Tydlig uppmaning till handling — vad ska läsaren göra härnäst?",
			"- Använd radbrytningar och stycken för läsbarhet",
			"- Email-vänlig ton — personlig men professionell",
			"- Skriv som att du pratar direkt till mottagaren",
		},
	},
}

const groundingClause = "VIKTIGT: Använd ENBART information som finns i källorna nedan. " +
	"Hitta INTE på fakta, siffror, tjänster eller påståenden som inte finns i källmaterialet. " +
	"Allt innehåll måste kunna spåras tillbaka till en specifik källa."

// Fields returns the field list the model must fill for req: the type's own
// fields, or for custom types the caller's fields defaulting to "Text".
func Fields(req Request) []string {
	if !req.Type.Custom {
		return append([]string(nil), req.Type.Fields...)
	}
	var fields []string
	for _, f := range req.CustomFields {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return []string{DefaultCustomField}
	}
	return fields
}

// Count returns the number of posts to ask for.
func Count(req Request) int {
	if req.Count > 0 {
		return req.Count
	}
	return contenttypes.DefaultCount(req.Type.Platform)
}

// Build renders the prompt for req.
func Build(req Request) string {
	tpl, ok := templates[req.Type.Platform]
	if !ok {
		tpl = templates[core.PlatformInstagram]
	}

	count := Count(req)
	fields := Fields(req)
	tone := req.Tone
	if tone == "" {
		tone = core.DefaultTone
	}

	var b strings.Builder
	b.WriteString(tpl.intro)
	b.WriteString("\n\n")

	b.WriteString(groundingClause)
	if tpl.allowFewer {
		fmt.Fprintf(&b, " Om källorna inte innehåller tillräckligt med material för %d unika inlägg, skapa färre men håll kvaliteten.", count)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, tpl.countLine, count, req.Type.Name)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s: %s\n\n", tpl.fieldsLabel, strings.Join(fields, ", "))

	if len(tpl.format) > 0 {
		b.WriteString(strings.Join(tpl.format, "\n"))
		b.WriteString("\n\n")
	}

	if req.Type.Custom {
		if brief := strings.TrimSpace(req.CustomInstructions); brief != "" {
			b.WriteString("Instruktioner för innehållet:\n")
			b.WriteString(brief)
			b.WriteString("\n\n")
		}
	}

	if extra := nonEmpty(req.Instructions); len(extra) > 0 {
		b.WriteString("Extra instruktioner:\n")
		for _, in := range extra {
			b.WriteString("- ")
			b.WriteString(in)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Tonläge: %s\n\n", tone)

	b.WriteString("Här är källorna — använd ENBART dessa:\n")
	for i, s := range req.Sources {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Källa %d ---\n%s", i+1, s)
	}
	b.WriteString("\n\n")

	b.WriteString(`Svara ENBART med en JSON-array. Varje objekt ska ha ett "fields"-objekt med nycklar som matchar fältnamnen ovan.`)
	b.WriteString("\n\nExempel på format:\n[\n  ")
	b.WriteString(skeleton(fields))
	b.WriteString("\n]")

	return b.String()
}

// skeleton renders one example array element listing every field.
func skeleton(fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = strconv.Quote(f) + `: "..."`
	}
	return `{ "fields": { ` + strings.Join(parts, ", ") + ` } }`
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
