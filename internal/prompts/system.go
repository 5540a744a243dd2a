// Package prompts assembles the system instruction sent with every
// model call.
package prompts

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adavila/ada/internal/facts"
)

// defaultPersona is the built-in persona used when no persona file is
// configured. Operators override it with a plain-text file.
const defaultPersona = `Eres Ada, la asistente personal de tu usuario.

## Estilo
- Responde en el idioma del usuario (normalmente español).
- Sé breve y directa: confirma acciones con una frase, no con párrafos.
- Trata al usuario de tú.

## Herramientas
Usa herramientas solo cuando el usuario pida HACER o CONSULTAR algo concreto:
- "Recuérdame comprar leche" → create_task
- "¿Tengo algo mañana?" → get_calendar_events
- "Mándale un correo a Marta" → send_email

NO uses herramientas para saludos ni conversación. "Hola" se responde
con un saludo, sin consultar nada antes.

Cuando guardes algo en memoria con remember_fact, confírmalo en una
frase corta. No inventes datos: si una herramienta falla o no devuelve
nada, dilo tal cual.`

// Builder produces system prompts. The persona and timezone are fixed
// at startup; facts are re-read on every call so a fact saved by one
// turn is visible to the next model call.
type Builder struct {
	persona string
	loc     *time.Location
	now     func() time.Time
}

// NewBuilder creates a prompt builder with the given persona text. An
// empty persona selects the built-in default.
func NewBuilder(persona string, loc *time.Location) *Builder {
	if persona == "" {
		persona = defaultPersona
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{persona: persona, loc: loc, now: time.Now}
}

// LoadPersona reads persona text from a file. Returns the built-in
// default when path is empty.
func LoadPersona(path string) (string, error) {
	if path == "" {
		return defaultPersona, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read persona file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Build assembles the system prompt: persona, current wall-clock time
// in the configured timezone, and the owner's stored facts as a
// bulleted list. Pure with respect to its inputs; no caching.
func (b *Builder) Build(ownerFacts []*facts.Fact) string {
	var sb strings.Builder

	sb.WriteString(b.persona)
	sb.WriteString("\n\n")

	now := b.now().In(b.loc)
	sb.WriteString(fmt.Sprintf("Fecha y hora actuales: %s (%s)\n",
		now.Format("Monday, 2 January 2006, 15:04"), b.loc.String()))

	sb.WriteString("\n## Lo que sabes del usuario\n")
	if len(ownerFacts) == 0 {
		sb.WriteString("Todavía no hay datos guardados sobre el usuario.\n")
	} else {
		for _, f := range ownerFacts {
			sb.WriteString(fmt.Sprintf("- [%s] %s: %s\n", f.Category, f.Key, f.Value))
		}
	}

	return sb.String()
}
