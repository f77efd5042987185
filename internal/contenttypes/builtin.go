package contenttypes

import "studio/internal/core"

func builtinTypes() []core.ContentType {
	ig := core.PlatformInstagram
	li := core.PlatformLinkedIn
	nl := core.PlatformNewsletter

	return []core.ContentType{
		// Instagram stories
		{Platform: ig, Key: "myt-vs-sanning", Name: "Myt vs Sanning", Icon: "⚡",
			Description: "Avliva vanliga missförstånd med fakta",
			Fields:      []string{"Myt", "Sanning", "Förklaring", "CTA"}},
		{Platform: ig, Key: "visste-du-att", Name: "Visste du att...", Icon: "💡",
			Description: "Dela intressanta fakta som engagerar",
			Fields:      []string{"Hook", "Fakta", "Förklaring", "CTA"}},
		{Platform: ig, Key: "fraga-cecilia", Name: "Fråga Cecilia", Icon: "💬",
			Description: "Svara på vanliga frågor med expertis",
			Fields:      []string{"Fråga", "Cecilias svar", "Kontext", "CTA"}},
		{Platform: ig, Key: "kund-spotlight", Name: "Kund-spotlight", Icon: "⭐",
			Description: "Lyft fram kundberättelser och resultat",
			Fields:      []string{"Rubrik", "Situation", "Resultat", "CTA"}},
		{Platform: ig, Key: "snabbtips", Name: "Snabbtips", Icon: "🎯",
			Description: "Korta, actionbara tips",
			Fields:      []string{"Tipsnummer", "Tips", "Förklaring", "CTA"}},
		{Platform: ig, Key: "bakom-siffrorna", Name: "Bakom siffrorna", Icon: "📊",
			Description: "Förklara siffror och statistik som berör",
			Fields:      []string{"Siffra", "Vad den betyder", "Förklaring", "CTA"}},
		{Platform: ig, Key: "vad-skulle-du-valja", Name: "Vad skulle du välja?", Icon: "🤔",
			Description: "Interaktiva val som skapar engagemang",
			Fields:      []string{"Hook", "Alternativ A", "Alternativ B", "Reveal"}},
		{Platform: ig, Key: CustomInstagram, Name: "Custom inlägg", Icon: "✏️",
			Description: "Skriv egna instruktioner för skräddarsytt innehåll",
			Custom:      true},

		// LinkedIn posts
		{Platform: li, Key: "tankeledare", Name: "Tankeledare", Icon: "🧠",
			Description: "Dela insikter och perspektiv som positionerar dig som expert",
			Fields:      []string{"Hook", "Brödtext", "Avslut", "CTA"}},
		{Platform: li, Key: "tips-insikter", Name: "Tips & Insikter", Icon: "💡",
			Description: "Praktiska tips som ger värde direkt",
			Fields:      []string{"Hook", "Tipslista", "Sammanfattning", "CTA"}},
		{Platform: li, Key: "storytelling", Name: "Storytelling", Icon: "📖",
			Description: "Berätta en historia som engagerar och inspirerar",
			Fields:      []string{"Hook", "Berättelse", "Insikt", "CTA"}},
		{Platform: li, Key: "data-statistik", Name: "Data & Statistik", Icon: "📊",
			Description: "Lyft fram siffror och data som väcker intresse",
			Fields:      []string{"Hook", "Siffra", "Analys", "CTA"}},
		{Platform: li, Key: "fraga-svar", Name: "Fråga & Svar", Icon: "💬",
			Description: "Svara på vanliga frågor med expertis",
			Fields:      []string{"Fråga", "Svar", "Kontext", "CTA"}},
		{Platform: li, Key: "myt-vs-fakta", Name: "Myt vs Fakta", Icon: "⚡",
			Description: "Avliva myter med tydliga fakta",
			Fields:      []string{"Myt", "Fakta", "Förklaring", "CTA"}},
		{Platform: li, Key: "listicle", Name: "Listicle", Icon: "📋",
			Description: "Strukturerade listor som är lätta att ta till sig",
			Fields:      []string{"Rubrik", "Punktlista", "Avslut", "CTA"}},
		{Platform: li, Key: "kundberattelse", Name: "Kundberättelse", Icon: "⭐",
			Description: "Lyft fram kundresultat och framgångshistorier",
			Fields:      []string{"Rubrik", "Situation", "Resultat", "CTA"}},

		// Newsletters
		{Platform: nl, Key: "allman", Name: "Allmänt nyhetsbrev", Icon: "📬",
			Description: "Komplett nyhetsbrev för alla prenumeranter",
			Fields:      []string{"Ämnesrad", "Hook", "Huvudinnehåll", "Tips", "CTA"}},
		{Platform: nl, Key: "kund", Name: "Kundnyhetsbrev", Icon: "💎",
			Description: "Exklusiva insikter bara för kunder",
			Fields:      []string{"Ämnesrad", "Hook", "Djupanalys", "Case/Insikt", "CTA"}},
		{Platform: nl, Key: CustomNewsletter, Name: "Custom inlägg", Icon: "✏️",
			Description: "Skriv egna instruktioner för skräddarsytt innehåll",
			Custom:      true},
	}
}
