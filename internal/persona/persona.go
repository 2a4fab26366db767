package persona

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Voice is a prebuilt voice name understood by the realtime endpoint.
type Voice string

const (
	VoicePuck   Voice = "Puck"
	VoiceCharon Voice = "Charon"
	VoiceKore   Voice = "Kore"
	VoiceFenrir Voice = "Fenrir"
	VoiceZephyr Voice = "Zephyr"
	VoiceCustom Voice = "Custom"
)

// Voices lists the prebuilt voices in dashboard order.
var Voices = []Voice{VoicePuck, VoiceCharon, VoiceKore, VoiceFenrir, VoiceZephyr}

type Gender string

const (
	GenderMale   Gender = "Hombre"
	GenderFemale Gender = "Mujer"
)

// VoiceSettings is the spoken-style configuration of a persona.
type VoiceSettings struct {
	Speed             float64 `json:"speed" yaml:"speed"`
	Pitch             string  `json:"pitch" yaml:"pitch"`
	Style             string  `json:"style" yaml:"style"`
	Provider          string  `json:"provider" yaml:"provider"`
	ElevenLabsVoiceID string  `json:"elevenLabsVoiceId,omitempty" yaml:"elevenlabs_voice_id"`
	AccentLevel       int     `json:"accentLevel" yaml:"accent_level"`
	ArgentinaPreset   string  `json:"argentinaPreset,omitempty" yaml:"argentina_preset"`
}

// Persona configures one agent of the roster.
type Persona struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	Category      string        `json:"category" yaml:"category"`
	Occupation    string        `json:"occupation" yaml:"occupation"`
	Description   string        `json:"description" yaml:"description"`
	Age           string        `json:"age" yaml:"age"`
	Gender        Gender        `json:"gender" yaml:"gender"`
	Avatar        string        `json:"avatar" yaml:"avatar"`
	Website       string        `json:"website,omitempty" yaml:"website"`
	Voice         Voice         `json:"voice" yaml:"voice"`
	VoiceSettings VoiceSettings `json:"voiceSettings" yaml:"voice_settings"`
	Instruction   string        `json:"instruction" yaml:"instruction"`
	Behavior      string        `json:"behavior,omitempty" yaml:"behavior"`
	Tools         []string      `json:"tools,omitempty" yaml:"tools"`
	IsFavorite    bool          `json:"isFavorite,omitempty" yaml:"favorite"`
	IsPro         bool          `json:"isPro,omitempty" yaml:"pro"`
}

var ErrInvalid = errors.New("invalid persona")

var pitches = []string{"", "Grave", "Medio", "Agudo"}

// Validate checks the fields a session depends on.
func (p Persona) Validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalid)
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case strings.TrimSpace(p.Instruction) == "":
		return fmt.Errorf("%w: instruction is required", ErrInvalid)
	case !slices.Contains(Voices, p.Voice) && p.Voice != VoiceCustom:
		return fmt.Errorf("%w: unknown voice %q", ErrInvalid, p.Voice)
	}
	if s := p.VoiceSettings.Speed; s != 0 && (s < 0.5 || s > 2.0) {
		return fmt.Errorf("%w: speed %.2f outside 0.5..2.0", ErrInvalid, s)
	}
	if a := p.VoiceSettings.AccentLevel; a < 0 || a > 100 {
		return fmt.Errorf("%w: accent level %d outside 0..100", ErrInvalid, a)
	}
	if !slices.Contains(pitches, p.VoiceSettings.Pitch) {
		return fmt.Errorf("%w: unknown pitch %q", ErrInvalid, p.VoiceSettings.Pitch)
	}
	return nil
}

// Clone returns a deep copy so a running session is unaffected by later edits.
func (p Persona) Clone() Persona {
	c := p
	c.Tools = slices.Clone(p.Tools)
	return c
}

// PrebuiltVoice returns the voice name to request from the endpoint. Custom
// voices fall back to Kore.
func (p Persona) PrebuiltVoice() string {
	if p.Voice == "" || p.Voice == VoiceCustom {
		return string(VoiceKore)
	}
	return string(p.Voice)
}
