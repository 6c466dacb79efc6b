package usecases

import (
	"fmt"
	"strings"

	"luma_assistant/internal/entities"
	"luma_assistant/internal/interfaces"
)

// BusinessProfile holds the shop facts given to the generative backend.
type BusinessProfile struct {
	Name      string
	Owner     string
	ShopHours string
	Website   string
}

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"it": "Italian",
	"pt": "Portuguese",
	"he": "Hebrew",
}

func personaFor(lang string, p BusinessProfile) string {
	if lang == "fr" {
		return fmt.Sprintf("Tu es Luma, l'assistante de %s. Tu écris comme une vraie personne : chaleureuse, directe, "+
			"tu tutoies. Réponds en une ou deux phrases courtes, sans formule toute faite, sans te présenter, sans signature.", p.Name)
	}
	name, ok := languageNames[lang]
	if !ok {
		name = "the customer's language"
	}
	return fmt.Sprintf("You are Luma, the assistant of %s. Write like a real person: warm, direct, casual. "+
		"Answer in %s with one or two short sentences, no canned phrases, no self-introduction, no signature.", p.Name, name)
}

// BuildPrompt composes the single-turn request for one inbound message.
func BuildPrompt(p BusinessProfile, lang string, c entities.ClientContext, message string, temperature float64, maxTokens int) interfaces.CompletionRequest {
	first := "non"
	if c.FirstContact {
		first = "oui"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Boutique : %s. Horaires : %s. WhatsApp : 24h/24, 7j/7. Site : %s.\n", p.Name, p.ShopHours, p.Website)
	fmt.Fprintf(&sb, "Client : %s. Premier contact : %s. Échanges précédents : %d.\n", displayName(c.Name), first, len(c.History))
	if c.Notes != "" {
		fmt.Fprintf(&sb, "Notes :%s\n", c.Notes)
	}
	fmt.Fprintf(&sb, "Message du client : %s", message)

	return interfaces.CompletionRequest{
		System:      personaFor(lang, p),
		User:        sb.String(),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Client"
	}
	return name
}
