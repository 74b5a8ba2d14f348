// Package captcha defines the challenge variants and the wire contract shared
// by the generate and verify endpoints.
package captcha

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// VARIANTS
// =============================================================================

// Variant identifies one of the three challenge kinds.
type Variant string

const (
	VariantCharacter   Variant = "character"
	VariantImageSelect Variant = "image_select"
	VariantSlide       Variant = "slide"
)

// Variants lists every supported variant in display order.
var Variants = []Variant{VariantCharacter, VariantImageSelect, VariantSlide}

// ParseVariant accepts the wire name of a variant.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedVariant, s)
	}
	return v, nil
}

// Valid reports whether v is one of the known variants.
func (v Variant) Valid() bool {
	switch v {
	case VariantCharacter, VariantImageSelect, VariantSlide:
		return true
	}
	return false
}

func (v Variant) String() string { return string(v) }

// Label is the human-facing name.
func (v Variant) Label() string {
	switch v {
	case VariantCharacter:
		return "Characters"
	case VariantImageSelect:
		return "Image select"
	case VariantSlide:
		return "Slide puzzle"
	default:
		return string(v)
	}
}

// Next cycles through Variants.
func (v Variant) Next() Variant {
	for i, candidate := range Variants {
		if candidate == v {
			return Variants[(i+1)%len(Variants)]
		}
	}
	return Variants[0]
}

// =============================================================================
// GENERATE
// =============================================================================

// GenerateRequest is the body of POST /api/captcha/generate.
type GenerateRequest struct {
	CaptchaType Variant `json:"captchaType"`
}

// GenerateResponse is the envelope returned by the generate endpoint.
// Code 0 denotes success.
type GenerateResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message,omitempty"`
	Data    *GeneratedData `json:"data,omitempty"`
}

// GeneratedData carries the session id and the variant payload, still raw
// until the caller knows which variant it asked for.
type GeneratedData struct {
	CaptchaID   string          `json:"captchaId" validate:"required"`
	CaptchaType Variant         `json:"captchaType,omitempty"`
	ExpireTime  int64           `json:"expireTime,omitempty"`
	Data        json.RawMessage `json:"data" validate:"required"`
}

// CharacterChallenge is the payload of a character challenge.
type CharacterChallenge struct {
	Image string `json:"image" validate:"required"`
}

// ImageSelectChallenge is the payload of an image selection challenge.
type ImageSelectChallenge struct {
	Question    string   `json:"question"`
	TargetType  string   `json:"targetType,omitempty"`
	Images      []string `json:"images" validate:"required,min=1,dive,required"`
	SelectCount int      `json:"selectCount" validate:"gte=0"`
}

// SlideChallenge is the payload of a slide challenge. Everything but the
// background is optional.
type SlideChallenge struct {
	BackgroundImage string `json:"backgroundImage" validate:"required"`
	TemplateImage   string `json:"templateImage,omitempty"`
	TemplateY       int    `json:"templateY,omitempty"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
}

// Challenge is a decoded generation result: the session id plus exactly one
// variant payload, selected by Variant.
type Challenge struct {
	ID          string
	Variant     Variant
	ExpireTime  int64
	Character   *CharacterChallenge
	ImageSelect *ImageSelectChallenge
	Slide       *SlideChallenge
}

// DecodeChallenge decodes the raw payload of data for the variant that was
// requested.
func DecodeChallenge(requested Variant, data *GeneratedData) (*Challenge, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}
	if data.CaptchaType != "" && data.CaptchaType != requested {
		return nil, fmt.Errorf("%w: asked for %s, got %s", ErrMalformedResponse, requested, data.CaptchaType)
	}

	c := &Challenge{ID: data.CaptchaID, Variant: requested, ExpireTime: data.ExpireTime}
	var err error
	switch requested {
	case VariantCharacter:
		c.Character = &CharacterChallenge{}
		err = json.Unmarshal(data.Data, c.Character)
	case VariantImageSelect:
		c.ImageSelect = &ImageSelectChallenge{}
		err = json.Unmarshal(data.Data, c.ImageSelect)
	case VariantSlide:
		c.Slide = &SlideChallenge{}
		err = json.Unmarshal(data.Data, c.Slide)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVariant, requested)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return c, nil
}

// Payload returns the variant payload as an interface, for validation.
func (c *Challenge) Payload() any {
	switch c.Variant {
	case VariantCharacter:
		return c.Character
	case VariantImageSelect:
		return c.ImageSelect
	case VariantSlide:
		return c.Slide
	}
	return nil
}

// =============================================================================
// VERIFY
// =============================================================================

// VerifyRequest is the body of POST /api/captcha/verify. Exactly one of
// CaptchaCode or CaptchaAnswer is set, depending on CaptchaType.
type VerifyRequest struct {
	CaptchaID     string  `json:"captchaId"`
	CaptchaType   Variant `json:"captchaType"`
	CaptchaCode   string  `json:"captchaCode,omitempty"`
	CaptchaAnswer any     `json:"captchaAnswer,omitempty"`
}

// VerifyResponse is the verify endpoint reply. Fields other than Valid are
// informational.
type VerifyResponse struct {
	Valid   *bool  `json:"valid" validate:"required"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SelectAnswer is the image selection answer.
type SelectAnswer struct {
	SelectedIndexes []int `json:"selectedIndexes"`
}

// SlideAnswer is the slide answer: x is a 0-100 percent of the track,
// track the sampled pointer positions, duration milliseconds.
type SlideAnswer struct {
	X        int   `json:"x"`
	Track    []int `json:"track"`
	Duration int64 `json:"duration"`
}

// CodeAnswer is the typed character code.
type CodeAnswer string

// Answer is one of CodeAnswer, SelectAnswer or SlideAnswer.
type Answer interface {
	Variant() Variant
}

func (CodeAnswer) Variant() Variant { return VariantCharacter }
func (SelectAnswer) Variant() Variant { return VariantImageSelect }
func (SlideAnswer) Variant() Variant { return VariantSlide }

// BuildVerifyRequest merges a session id with an answer into the wire body.
func BuildVerifyRequest(id string, answer Answer) (VerifyRequest, error) {
	if answer == nil {
		return VerifyRequest{}, NewValidationError("no answer captured", nil)
	}
	req := VerifyRequest{CaptchaID: id, CaptchaType: answer.Variant()}
	switch a := answer.(type) {
	case CodeAnswer:
		req.CaptchaCode = string(a)
	case SelectAnswer:
		req.CaptchaAnswer = a
	case SlideAnswer:
		req.CaptchaAnswer = a
	default:
		return VerifyRequest{}, fmt.Errorf("%w: %T", ErrUnsupportedVariant, answer)
	}
	return req, nil
}
