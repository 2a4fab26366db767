package commands

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ent0n29/agenthub/internal/app"
	"github.com/ent0n29/agenthub/internal/config"
	"github.com/ent0n29/agenthub/internal/persona"
	"github.com/ent0n29/agenthub/internal/tts"
)

var (
	ttsAgentID string
	ttsText    string
	ttsOutput  string
)

var ttsCmd = &cobra.Command{
	Use:   "tts",
	Short: "Synthesize a voice preview",
	Long: `Synthesize a short preview with the configured TTS provider
(TTS_PROVIDER=auto|google|elevenlabs|mock).

Example:
  agenthub tts --agent pato --text "¿Qué hacés, che?" -o preview.mp3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(ttsOutput) == "" {
			return fmt.Errorf("output file is required, use -o flag")
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		provider, err := tts.New(tts.Config{
			Provider:            cfg.TTSProvider,
			GoogleAPIKey:        cfg.GoogleTTSAPIKey,
			GoogleBaseURL:       cfg.GoogleTTSBaseURL,
			ElevenLabsAPIKey:    cfg.ElevenLabsAPIKey,
			ElevenLabsWSBaseURL: cfg.ElevenLabsWSBaseURL,
			ElevenLabsModelID:   cfg.ElevenLabsTTSModelID,
		})
		if err != nil {
			return err
		}

		req := tts.Request{Text: ttsText}
		if ttsAgentID != "" {
			seed, err := app.Seed(cfg)
			if err != nil {
				return err
			}
			p, ok := findPersona(seed, ttsAgentID)
			if !ok {
				return fmt.Errorf("agent %q not in roster seed", ttsAgentID)
			}
			req = tts.RequestFor(p, ttsText)
		}

		res, err := provider.Synthesize(cmd.Context(), req)
		if err != nil {
			return err
		}
		data, err := base64.StdEncoding.DecodeString(res.AudioBase64)
		if err != nil {
			return fmt.Errorf("decode audio: %w", err)
		}
		if err := os.WriteFile(ttsOutput, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: wrote %d bytes (%s) to %s\n", provider.Name(), len(data), res.Format, ttsOutput)
		return nil
	},
}

func init() {
	ttsCmd.Flags().StringVar(&ttsAgentID, "agent", "", "agent id whose voice settings to use")
	ttsCmd.Flags().StringVar(&ttsText, "text", "", "text to synthesize")
	ttsCmd.Flags().StringVarP(&ttsOutput, "output", "o", "", "output audio file")
}

func findPersona(list []persona.Persona, id string) (persona.Persona, bool) {
	for _, p := range list {
		if p.ID == id {
			return p, true
		}
	}
	return persona.Persona{}, false
}
