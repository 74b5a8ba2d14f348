package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captchaclient/internal/captcha"
)

// backend records the last request and replies with a fixed status and body.
type backend struct {
	t      *testing.T
	srv    *httptest.Server
	hits   atomic.Int32
	path   string
	header http.Header
	body   map[string]any
}

func newBackend(t *testing.T, status int, reply string) (*backend, *Client) {
	t.Helper()
	b := &backend{t: t}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.hits.Add(1)
		b.path = r.URL.Path
		b.header = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		b.body = nil
		_ = json.Unmarshal(raw, &b.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(b.srv.Close)
	return b, New(b.srv.URL+"/", time.Second, WithHTTPClient(b.srv.Client()))
}

// =============================================================================
// GENERATE
// =============================================================================

func TestGenerate_Character(t *testing.T) {
	b, c := newBackend(t, http.StatusOK,
		`{"code":0,"message":"success","data":{"captchaId":"abc","captchaType":"character","expireTime":1700000300,"data":{"image":"data:image/png;base64,AAAA"}}}`)

	ch, err := c.Generate(context.Background(), captcha.VariantCharacter)
	require.NoError(t, err)

	want := &captcha.Challenge{
		ID:         "abc",
		Variant:    captcha.VariantCharacter,
		ExpireTime: 1700000300,
		Character:  &captcha.CharacterChallenge{Image: "data:image/png;base64,AAAA"},
	}
	if diff := cmp.Diff(want, ch); diff != "" {
		t.Errorf("challenge mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, GeneratePath, b.path)
	assert.Equal(t, "application/json", b.header.Get("Content-Type"))
	_, err = uuid.Parse(b.header.Get(RequestIDHeader))
	assert.NoError(t, err, "request id is a uuid")
	if diff := cmp.Diff(map[string]any{"captchaType": "character"}, b.body); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_ImageSelectAndSlide(t *testing.T) {
	_, c := newBackend(t, http.StatusOK,
		`{"code":0,"data":{"captchaId":"i1","data":{"question":"Select all buses","targetType":"bus","images":["a","b","c","d"],"selectCount":2}}}`)
	ch, err := c.Generate(context.Background(), captcha.VariantImageSelect)
	require.NoError(t, err)
	require.NotNil(t, ch.ImageSelect)
	assert.Equal(t, 2, ch.ImageSelect.SelectCount)
	assert.Equal(t, "bus", ch.ImageSelect.TargetType)
	assert.Len(t, ch.ImageSelect.Images, 4)

	_, c = newBackend(t, http.StatusOK,
		`{"code":0,"data":{"captchaId":"s1","data":{"backgroundImage":"bg","templateImage":"tpl","templateY":40,"width":350,"height":200}}}`)
	ch, err = c.Generate(context.Background(), captcha.VariantSlide)
	require.NoError(t, err)
	want := &captcha.SlideChallenge{BackgroundImage: "bg", TemplateImage: "tpl", TemplateY: 40, Width: 350, Height: 200}
	if diff := cmp.Diff(want, ch.Slide); diff != "" {
		t.Errorf("slide mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_Rejected(t *testing.T) {
	cases := []struct {
		name   string
		status int
		reply  string
		msg    string
	}{
		{"code in 200", http.StatusOK, `{"code":1,"message":"captcha type not supported"}`, "captcha type not supported"},
		{"code in 500", http.StatusInternalServerError, `{"code":500,"message":"generate failed: boom"}`, "generate failed: boom"},
		{"no message", http.StatusOK, `{"code":2}`, "Failed to generate captcha"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, c := newBackend(t, tc.status, tc.reply)
			_, err := c.Generate(context.Background(), captcha.VariantCharacter)
			require.Error(t, err)
			assert.True(t, captcha.IsGeneration(err))
			assert.Equal(t, tc.msg, captcha.UserMessage(err))
		})
	}
}

func TestGenerate_MalformedIsTransport(t *testing.T) {
	cases := []struct {
		name   string
		status int
		reply  string
	}{
		{"not json", http.StatusOK, `<html>oops</html>`},
		{"html error page", http.StatusBadGateway, `<html>bad gateway</html>`},
		{"missing data", http.StatusOK, `{"code":0}`},
		{"missing id", http.StatusOK, `{"code":0,"data":{"data":{"image":"x"}}}`},
		{"wrong variant", http.StatusOK, `{"code":0,"data":{"captchaId":"a","captchaType":"slide","data":{"image":"x"}}}`},
		{"empty payload", http.StatusOK, `{"code":0,"data":{"captchaId":"a","data":{}}}`},
		{"payload not object", http.StatusOK, `{"code":0,"data":{"captchaId":"a","data":[1,2]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, c := newBackend(t, tc.status, tc.reply)
			_, err := c.Generate(context.Background(), captcha.VariantCharacter)
			require.Error(t, err)
			assert.True(t, captcha.IsTransport(err), "got %v", err)
			assert.ErrorIs(t, err, captcha.ErrMalformedResponse)
		})
	}
}

func TestGenerate_UnsupportedVariantSendsNothing(t *testing.T) {
	b, c := newBackend(t, http.StatusOK, `{}`)
	_, err := c.Generate(context.Background(), "audio")
	assert.True(t, captcha.IsValidation(err))
	assert.ErrorIs(t, err, captcha.ErrUnsupportedVariant)
	assert.Zero(t, b.hits.Load())
}

func TestGenerate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second)
	_, err := c.Generate(context.Background(), captcha.VariantCharacter)
	require.Error(t, err)
	assert.True(t, captcha.IsTransport(err))
	assert.Equal(t, "Network error, please try again", captcha.UserMessage(err))
	c.client.CloseIdleConnections()
}

func TestGenerate_ContextCanceled(t *testing.T) {
	_, c := newBackend(t, http.StatusOK, `{"code":0}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Generate(ctx, captcha.VariantCharacter)
	assert.True(t, captcha.IsTransport(err))
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// VERIFY
// =============================================================================

func TestVerify_SendsTaggedBody(t *testing.T) {
	cases := []struct {
		name string
		req  captcha.VerifyRequest
		want map[string]any
	}{
		{
			name: "character",
			req:  captcha.VerifyRequest{CaptchaID: "abc", CaptchaType: captcha.VariantCharacter, CaptchaCode: "7F3Q"},
			want: map[string]any{"captchaId": "abc", "captchaType": "character", "captchaCode": "7F3Q"},
		},
		{
			name: "image select",
			req:  captcha.VerifyRequest{CaptchaID: "i1", CaptchaType: captcha.VariantImageSelect, CaptchaAnswer: captcha.SelectAnswer{SelectedIndexes: []int{1, 3}}},
			want: map[string]any{"captchaId": "i1", "captchaType": "image_select", "captchaAnswer": map[string]any{"selectedIndexes": []any{1.0, 3.0}}},
		},
		{
			name: "slide",
			req:  captcha.VerifyRequest{CaptchaID: "s1", CaptchaType: captcha.VariantSlide, CaptchaAnswer: captcha.SlideAnswer{X: 62, Track: []int{0, 5, 10}, Duration: 900}},
			want: map[string]any{"captchaId": "s1", "captchaType": "slide", "captchaAnswer": map[string]any{"x": 62.0, "track": []any{0.0, 5.0, 10.0}, "duration": 900.0}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, c := newBackend(t, http.StatusOK, `{"code":0,"message":"success","valid":true}`)
			valid, err := c.Verify(context.Background(), tc.req)
			require.NoError(t, err)
			assert.True(t, valid)
			assert.Equal(t, VerifyPath, b.path)
			if diff := cmp.Diff(tc.want, b.body); diff != "" {
				t.Errorf("request body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVerify_NegativeIsNotAnError(t *testing.T) {
	_, c := newBackend(t, http.StatusOK, `{"code":0,"valid":false}`)
	valid, err := c.Verify(context.Background(), captcha.VerifyRequest{CaptchaID: "abc", CaptchaType: captcha.VariantCharacter, CaptchaCode: "x"})
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestVerify_Failures(t *testing.T) {
	req := captcha.VerifyRequest{CaptchaID: "abc", CaptchaType: captcha.VariantCharacter, CaptchaCode: "x"}
	cases := []struct {
		name   string
		status int
		reply  string
		msg    string
	}{
		{"missing valid", http.StatusOK, `{"code":0}`, "The server sent an unreadable response"},
		{"server error", http.StatusInternalServerError, `{"code":500,"message":"store unavailable"}`, "Verification error: store unavailable"},
		{"bad request", http.StatusBadRequest, `{"code":400}`, "Verification error"},
		{"garbage", http.StatusOK, `valid`, "The server sent an unreadable response"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, c := newBackend(t, tc.status, tc.reply)
			valid, err := c.Verify(context.Background(), req)
			require.Error(t, err)
			assert.False(t, valid)
			assert.True(t, captcha.IsTransport(err))
			assert.Equal(t, tc.msg, captcha.UserMessage(err))
		})
	}
}

func TestVerify_NoSessionSendsNothing(t *testing.T) {
	b, c := newBackend(t, http.StatusOK, `{"valid":true}`)
	_, err := c.Verify(context.Background(), captcha.VerifyRequest{CaptchaType: captcha.VariantCharacter})
	assert.ErrorIs(t, err, captcha.ErrNoSession)
	assert.Zero(t, b.hits.Load())
}
