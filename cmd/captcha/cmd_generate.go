package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"captchaclient/cmd/captcha/ui"
	"captchaclient/internal/captcha"
	"captchaclient/internal/render"
)

var (
	generateType string
	generateJSON bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Request a new challenge and print it",
	Long: `Requests a challenge of the given type and prints its id and payload.

The id can be passed to "captcha verify" together with an answer.`,
	Example: `  captcha generate --type character
  captcha generate --type slide --json`,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	variant, err := captcha.ParseVariant(generateType)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GetServerTimeout())
	defer cancel()

	challenge, err := newClient().Generate(ctx, variant)
	if err != nil {
		return fmt.Errorf("%s", captcha.UserMessage(err))
	}

	if generateJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"captchaId":   challenge.ID,
			"captchaType": challenge.Variant,
			"expireTime":  challenge.ExpireTime,
			"data":        challenge.Payload(),
		})
	}
	printChallenge(cmd.OutOrStdout(), challenge, ui.NewStyles(ui.ThemeFor(cfg.UI.Theme)))
	return nil
}

// printChallenge writes a human summary of a challenge.
func printChallenge(w io.Writer, c *captcha.Challenge, styles ui.Styles) {
	palette := styles.Palette()
	fmt.Fprintln(w, styles.Header.Render(c.Variant.Label()))
	fmt.Fprintf(w, "id:      %s\n", c.ID)
	if c.ExpireTime > 0 {
		fmt.Fprintf(w, "expires: %s\n", time.Unix(c.ExpireTime, 0).Format(time.RFC3339))
	}

	switch c.Variant {
	case captcha.VariantCharacter:
		fmt.Fprintln(w, render.ImageBlock(c.Character.Image, 40, 8, palette.Muted))
	case captcha.VariantImageSelect:
		fmt.Fprintf(w, "question: %s\n", c.ImageSelect.Question)
		fmt.Fprintf(w, "images:   %d (select %d)\n", len(c.ImageSelect.Images), c.ImageSelect.SelectCount)
	case captcha.VariantSlide:
		fmt.Fprintf(w, "piece row: %d\n", c.Slide.TemplateY)
		fmt.Fprintln(w, render.ImageBlock(c.Slide.BackgroundImage, 56, 10, palette.Muted))
	}
}
