package session

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"captchaclient/internal/captcha"
	"captchaclient/internal/render"
	"captchaclient/internal/trajectory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func characterChallenge(id string) *captcha.Challenge {
	return &captcha.Challenge{
		ID:        id,
		Variant:   captcha.VariantCharacter,
		Character: &captcha.CharacterChallenge{Image: "data:image/png;base64,"},
	}
}

func imageSelectChallenge(id string) *captcha.Challenge {
	return &captcha.Challenge{
		ID:      id,
		Variant: captcha.VariantImageSelect,
		ImageSelect: &captcha.ImageSelectChallenge{
			Question:    "Select all buses",
			Images:      []string{"a", "b", "c", "d", "e", "f"},
			SelectCount: 2,
		},
	}
}

func slideChallenge(id string) *captcha.Challenge {
	return &captcha.Challenge{
		ID:      id,
		Variant: captcha.VariantSlide,
		Slide:   &captcha.SlideChallenge{BackgroundImage: "bg", Width: 350, Height: 200},
	}
}

func displayed(t *testing.T, c *Controller, ch *captcha.Challenge) {
	t.Helper()
	ticket := c.Start(ch.Variant)
	require.True(t, c.OnGenerated(ticket, ch))
	require.Equal(t, StateDisplayed, c.State())
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestCharacterSuccessAutoResets(t *testing.T) {
	c := New(Options{})
	displayed(t, c, characterChallenge("abc"))

	c.SetCode("7F3Q")
	ticket, req, err := c.RequestVerification()
	require.NoError(t, err)
	assert.Equal(t, StateVerifying, c.State())

	body, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"captchaId":"abc","captchaType":"character","captchaCode":"7F3Q"}`, string(body))

	res, ok := c.OnVerified(ticket, true, nil)
	require.True(t, ok)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 2000*time.Millisecond, res.AutoReset)
	assert.Equal(t, StateResolved, c.State())

	assert.True(t, c.ResetIfCurrent(c.Token()))
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, c.SessionID())
}

func TestImageSelectNegativeKeepsSession(t *testing.T) {
	c := New(Options{})
	displayed(t, c, imageSelectChallenge("s-2"))

	is := c.Renderer().(*render.ImageSelectRenderer)
	is.Toggle(3)
	is.Toggle(1)

	ticket, req, err := c.RequestVerification()
	require.NoError(t, err)
	body, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"captchaId":"s-2","captchaType":"image_select","captchaAnswer":{"selectedIndexes":[1,3]}}`, string(body))

	res, ok := c.OnVerified(ticket, false, nil)
	require.True(t, ok)
	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Zero(t, res.Kind, "negative verification is not an error")
	assert.True(t, res.Retry)
	assert.Zero(t, res.AutoReset)
	assert.Equal(t, "s-2", c.SessionID())

	// Retry without regenerating.
	is.Toggle(1)
	is.Toggle(2)
	_, req, err = c.RequestVerification()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2, 3}, req.CaptchaAnswer.(captcha.SelectAnswer).SelectedIndexes)
}

func TestSlideDragThroughController(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	c := New(Options{TrackMax: 280, Threshold: 2, Clock: clock.Now})
	displayed(t, c, slideChallenge("s-3"))

	slide := c.Renderer().(*render.SlideRenderer)
	row := slide.TrackRow()
	slide.Pointer(trajectory.PointerDown, 0, row)
	for x := 1; x <= 28; x++ {
		clock.Advance(40 * time.Millisecond)
		slide.Pointer(trajectory.PointerMove, x, row)
	}
	slide.Pointer(trajectory.PointerUp, 28, row)

	_, req, err := c.RequestVerification()
	require.NoError(t, err)
	answer := req.CaptchaAnswer.(captcha.SlideAnswer)
	assert.Equal(t, 50, answer.X)
	assert.Equal(t, int64(28*40), answer.Duration)
	assert.GreaterOrEqual(t, len(answer.Track), 10)

	c.Reset()
	assert.Equal(t, 0, c.Router().Len(), "reset releases pointer listeners")
	_, ok := c.Store().Trace()
	assert.False(t, ok)
}

// =============================================================================
// PRECONDITIONS
// =============================================================================

func TestEmptySelectionIsLocalValidation(t *testing.T) {
	c := New(Options{})
	displayed(t, c, imageSelectChallenge("s-4"))
	before := c.Token()

	ticket, _, err := c.RequestVerification()
	require.Error(t, err)
	assert.True(t, captcha.IsValidation(err))
	assert.Zero(t, ticket, "no request issued")
	assert.Equal(t, before, c.Token())

	res, ok := c.Resolution()
	require.True(t, ok)
	assert.Equal(t, captcha.KindValidation, res.Kind)
	assert.Equal(t, "Please select at least one image", res.Message)
	assert.True(t, res.Retry)
	assert.Equal(t, "s-4", c.SessionID())
}

func TestMissingInputPerVariant(t *testing.T) {
	for _, ch := range []*captcha.Challenge{characterChallenge("a"), imageSelectChallenge("b"), slideChallenge("c")} {
		t.Run(string(ch.Variant), func(t *testing.T) {
			c := New(Options{})
			displayed(t, c, ch)
			if ch.Variant == captcha.VariantCharacter {
				c.SetCode("   ")
			}
			_, _, err := c.RequestVerification()
			assert.True(t, captcha.IsValidation(err))
			assert.NotNil(t, c.Renderer())
		})
	}
}

func TestVerifyWithoutSession(t *testing.T) {
	c := New(Options{})
	_, _, err := c.RequestVerification()
	assert.True(t, captcha.IsValidation(err))
	assert.ErrorIs(t, err, captcha.ErrNoSession)

	res, ok := c.Resolution()
	require.True(t, ok)
	assert.False(t, res.Retry)

	c.Start(captcha.VariantCharacter)
	_, _, err = c.RequestVerification()
	assert.ErrorIs(t, err, captcha.ErrNoSession)
	assert.Equal(t, StateGenerating, c.State(), "pending generate is untouched")
}

func TestVerifyWhileVerifying(t *testing.T) {
	c := New(Options{})
	displayed(t, c, characterChallenge("a"))
	c.SetCode("x")
	ticket, _, err := c.RequestVerification()
	require.NoError(t, err)

	_, _, err = c.RequestVerification()
	assert.True(t, captcha.IsValidation(err))
	assert.Equal(t, StateVerifying, c.State())
	assert.Equal(t, ticket, c.Token())
}

// =============================================================================
// FAILURES
// =============================================================================

func TestGenerateFailure(t *testing.T) {
	c := New(Options{})
	ticket := c.Start(captcha.VariantSlide)

	assert.True(t, c.OnGenerateFailed(ticket, captcha.NewGenerationError("captcha type not supported")))
	res, _ := c.Resolution()
	assert.Equal(t, captcha.KindGeneration, res.Kind)
	assert.Equal(t, "captcha type not supported", res.Message)
	assert.Empty(t, c.SessionID())
	assert.False(t, res.Retry)
}

func TestUnrenderableChallengeFails(t *testing.T) {
	c := New(Options{})
	ticket := c.Start(captcha.VariantSlide)
	assert.True(t, c.OnGenerated(ticket, &captcha.Challenge{ID: "x", Variant: captcha.VariantSlide}))
	res, _ := c.Resolution()
	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Equal(t, captcha.KindTransport, res.Kind)
	assert.Nil(t, c.Renderer())

	ticket = c.Start(captcha.VariantSlide)
	assert.True(t, c.OnGenerated(ticket, characterChallenge("y")), "variant mismatch")
	assert.Empty(t, c.SessionID())
}

func TestTransportErrorIsDistinct(t *testing.T) {
	c := New(Options{})
	displayed(t, c, characterChallenge("abc"))
	c.SetCode("7F3Q")
	ticket, _, err := c.RequestVerification()
	require.NoError(t, err)

	res, ok := c.OnVerified(ticket, false, captcha.NewTransportError("Network error, please try again", errors.New("connection refused")))
	require.True(t, ok)
	assert.Equal(t, captcha.KindTransport, res.Kind)
	assert.NotEqual(t, "Verification failed, please try again", res.Message)
	assert.True(t, res.Retry)
}

// =============================================================================
// STALE RESULTS
// =============================================================================

func TestStaleGenerateResponseIgnored(t *testing.T) {
	c := New(Options{})
	first := c.Start(captcha.VariantCharacter)
	second := c.Start(captcha.VariantImageSelect)
	assert.Greater(t, second, first)

	assert.False(t, c.OnGenerated(first, characterChallenge("old")))
	assert.False(t, c.OnGenerateFailed(first, errors.New("late")))
	assert.Equal(t, StateGenerating, c.State())
	assert.Equal(t, captcha.VariantImageSelect, c.Variant())
	assert.Empty(t, c.SessionID())

	assert.True(t, c.OnGenerated(second, imageSelectChallenge("new")))
	assert.Equal(t, "new", c.SessionID())
}

func TestVariantSwitchWhileVerifying(t *testing.T) {
	c := New(Options{})
	displayed(t, c, characterChallenge("abc"))
	c.SetCode("7F3Q")
	ticket, _, err := c.RequestVerification()
	require.NoError(t, err)

	next := c.Start(captcha.VariantSlide)
	_, ok := c.OnVerified(ticket, true, nil)
	assert.False(t, ok)
	assert.Equal(t, StateGenerating, c.State())
	_, resolved := c.Resolution()
	assert.False(t, resolved)

	require.True(t, c.OnGenerated(next, slideChallenge("s")))
	assert.Empty(t, c.Store().Code(), "code from the old variant is gone")
}

func TestAutoResetTimerForOldSession(t *testing.T) {
	c := New(Options{AutoResetDelay: time.Second})
	displayed(t, c, characterChallenge("abc"))
	c.SetCode("ok")
	ticket, _, _ := c.RequestVerification()
	res, _ := c.OnVerified(ticket, true, nil)
	assert.Equal(t, time.Second, res.AutoReset)
	armed := c.Token()

	c.Start(captcha.VariantImageSelect)
	assert.False(t, c.ResetIfCurrent(armed))
	assert.Equal(t, StateGenerating, c.State())

	_, _, err := c.RequestVerification()
	assert.Error(t, err)
}

func TestNoVerifyAfterSuccess(t *testing.T) {
	c := New(Options{})
	displayed(t, c, characterChallenge("abc"))
	c.SetCode("ok")
	ticket, _, _ := c.RequestVerification()
	c.OnVerified(ticket, true, nil)

	_, _, err := c.RequestVerification()
	assert.True(t, captcha.IsValidation(err))
	res, _ := c.Resolution()
	assert.True(t, res.Success())
}

// =============================================================================
// RESET
// =============================================================================

func TestResetFromAnyState(t *testing.T) {
	setups := map[string]func(c *Controller){
		"idle":       func(c *Controller) {},
		"generating": func(c *Controller) { c.Start(captcha.VariantSlide) },
		"displayed": func(c *Controller) {
			displayed(t, c, imageSelectChallenge("a"))
			c.Renderer().(*render.ImageSelectRenderer).Toggle(2)
		},
		"verifying": func(c *Controller) {
			displayed(t, c, characterChallenge("b"))
			c.SetCode("x")
			_, _, _ = c.RequestVerification()
		},
		"resolved": func(c *Controller) {
			displayed(t, c, slideChallenge("c"))
			_, _, _ = c.RequestVerification()
		},
	}
	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			c := New(Options{})
			setup(c)
			before := c.Token()

			c.Reset()
			assert.Equal(t, StateIdle, c.State())
			assert.Empty(t, c.SessionID())
			assert.Zero(t, c.Store().SelectionCount())
			assert.Empty(t, c.Store().Code())
			_, ok := c.Store().Trace()
			assert.False(t, ok)
			assert.Nil(t, c.Renderer())
			assert.Equal(t, 0, c.Router().Len())
			assert.Greater(t, c.Token(), before)
		})
	}
}

func TestExpired(t *testing.T) {
	c := New(Options{})
	ch := characterChallenge("abc")
	ch.ExpireTime = 1700000300
	displayed(t, c, ch)

	assert.False(t, c.Expired(time.Unix(1700000000, 0)))
	assert.True(t, c.Expired(time.Unix(1700000301, 0)))

	c.Reset()
	assert.False(t, c.Expired(time.Unix(1800000000, 0)))
}
