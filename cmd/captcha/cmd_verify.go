package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"captchaclient/internal/captcha"
)

var (
	verifyID       string
	verifyType     string
	verifyCode     string
	verifySelect   string
	verifySlideX   int
	verifyTrack    string
	verifyDuration int64
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Submit an answer for a generated challenge",
	Example: `  captcha verify --id 3f2c... --type character --code 7F3Q
  captcha verify --id 3f2c... --type image_select --select 1,3
  captcha verify --id 3f2c... --type slide --slide-x 53 --track 0,5,12,30 --duration 1400`,
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	variant, err := captcha.ParseVariant(verifyType)
	if err != nil {
		return err
	}
	answer, err := answerFromFlags(variant, verifyCode, verifySelect, verifySlideX, verifyTrack, verifyDuration)
	if err != nil {
		return err
	}
	req, err := captcha.BuildVerifyRequest(verifyID, answer)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GetServerTimeout())
	defer cancel()

	valid, err := newClient().Verify(ctx, req)
	if err != nil {
		return fmt.Errorf("%s", captcha.UserMessage(err))
	}
	if !valid {
		return fmt.Errorf("verification failed")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "verification passed")
	return nil
}

// answerFromFlags builds the answer for variant from the command line values.
func answerFromFlags(variant captcha.Variant, code, selection string, slideX int, track string, duration int64) (captcha.Answer, error) {
	switch variant {
	case captcha.VariantCharacter:
		code = strings.TrimSpace(code)
		if code == "" {
			return nil, captcha.NewValidationError("--code is required for character challenges", nil)
		}
		return captcha.CodeAnswer(code), nil

	case captcha.VariantImageSelect:
		indexes, err := parseInts(selection)
		if err != nil {
			return nil, captcha.NewValidationError("invalid --select", err)
		}
		if len(indexes) == 0 {
			return nil, captcha.NewValidationError("--select needs at least one index", nil)
		}
		return captcha.SelectAnswer{SelectedIndexes: indexes}, nil

	case captcha.VariantSlide:
		if slideX < 0 || slideX > 100 {
			return nil, captcha.NewValidationError("--slide-x must be between 0 and 100", nil)
		}
		points, err := parseInts(track)
		if err != nil {
			return nil, captcha.NewValidationError("invalid --track", err)
		}
		if duration < 0 {
			return nil, captcha.NewValidationError("--duration must not be negative", nil)
		}
		if points == nil {
			points = []int{}
		}
		return captcha.SlideAnswer{X: slideX, Track: points, Duration: duration}, nil
	}
	return nil, fmt.Errorf("%w: %q", captcha.ErrUnsupportedVariant, variant)
}

// parseInts reads a comma-separated list of non-negative integers.
func parseInts(s string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("negative value %d", n)
		}
		out = append(out, n)
	}
	return out, nil
}
