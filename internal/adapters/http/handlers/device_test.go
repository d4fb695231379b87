package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/longregen/alicia-edge/internal/adapters/http/dto"
	"github.com/longregen/alicia-edge/internal/adapters/http/encoding"
	"github.com/longregen/alicia-edge/internal/application"
	"github.com/longregen/alicia-edge/internal/domain"
)

type fakeDevice struct {
	mu       sync.Mutex
	status   application.Status
	wakeErr  error
	calls    []string
	lastText string
	lastWord string
	lastURL  string
}

func (d *fakeDevice) record(call string) {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

func (d *fakeDevice) called(call string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (d *fakeDevice) Status() application.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *fakeDevice) Wakeup(word string, doa int, confidence float64) error {
	d.record("wakeup")
	d.mu.Lock()
	d.lastWord = word
	d.mu.Unlock()
	return d.wakeErr
}

func (d *fakeDevice) TextRecognize(text string) error {
	d.record("text")
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text: %w", domain.ErrInvalidInput)
	}
	d.mu.Lock()
	d.lastText = text
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) NetworkConnected()    { d.record("network_up") }
func (d *fakeDevice) NetworkDisconnected() { d.record("network_down") }

func (d *fakeDevice) SetVolume(volume int) error {
	d.record("volume")
	if volume < 0 || volume > 100 {
		return fmt.Errorf("volume %d: %w", volume, domain.ErrInvalidInput)
	}
	d.mu.Lock()
	d.status.Volume = volume
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) SetMuted(muted bool) error {
	d.record("mute")
	d.mu.Lock()
	d.status.Muted = muted
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) PlayPrompt(url string) error {
	d.record("prompt")
	if url == "" {
		return fmt.Errorf("prompt: %w", domain.ErrInvalidInput)
	}
	d.mu.Lock()
	d.lastURL = url
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) QueryUserInfo() { d.record("userinfo") }
func (d *fakeDevice) Dump()          { d.record("dump") }

func post(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func TestDeviceHandler_Status(t *testing.T) {
	device := &fakeDevice{status: application.Status{Started: true, Volume: 35}}
	h := NewDeviceHandler(device)

	rr := httptest.NewRecorder()
	h.Status(rr, httptest.NewRequest("GET", "/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got application.Status
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.True(t, got.Started)
	assert.Equal(t, 35, got.Volume)
}

func TestDeviceHandler_Status_Msgpack(t *testing.T) {
	h := NewDeviceHandler(&fakeDevice{status: application.Status{Volume: 12}})

	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("Accept", encoding.ContentTypeMsgpack)
	rr := httptest.NewRecorder()
	h.Status(rr, req)

	assert.Equal(t, encoding.ContentTypeMsgpack, rr.Header().Get("Content-Type"))
	var got map[string]any
	require.NoError(t, msgpack.Unmarshal(rr.Body.Bytes(), &got))
	assert.EqualValues(t, 12, got["volume"])
}

func TestDeviceHandler_Wakeup(t *testing.T) {
	device := &fakeDevice{}
	h := NewDeviceHandler(device)

	rr := post(t, h.Wakeup, `{}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "alicia", device.lastWord, "missing word defaults to the product wake word")

	device.wakeErr = fmt.Errorf("wakeup: %w", domain.ErrNotActive)
	rr = post(t, h.Wakeup, `{"word":"hey"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "not_active", resp.Error)
}

func TestDeviceHandler_Text(t *testing.T) {
	device := &fakeDevice{}
	h := NewDeviceHandler(device)

	assert.Equal(t, http.StatusAccepted, post(t, h.Text, `{"text":"play jazz"}`).Code)
	assert.Equal(t, "play jazz", device.lastText)

	assert.Equal(t, http.StatusBadRequest, post(t, h.Text, `{"text":" "}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h.Text, `not json`).Code)
}

func TestDeviceHandler_Text_MsgpackBody(t *testing.T) {
	device := &fakeDevice{}
	h := NewDeviceHandler(device)

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	require.NoError(t, enc.Encode(dto.TextRequest{Text: "good night"}))

	req := httptest.NewRequest("POST", "/api/v1/text", &buf)
	req.Header.Set("Content-Type", encoding.ContentTypeMsgpack)
	rr := httptest.NewRecorder()
	h.Text(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "good night", device.lastText)
}

func TestDeviceHandler_Network(t *testing.T) {
	device := &fakeDevice{}
	h := NewDeviceHandler(device)

	post(t, h.Network, `{"connected":true}`)
	post(t, h.Network, `{"connected":false}`)
	assert.True(t, device.called("network_up"))
	assert.True(t, device.called("network_down"))
}

func TestDeviceHandler_Volume(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "valid", body: `{"volume":55}`, wantCode: http.StatusOK},
		{name: "zero is a volume", body: `{"volume":0}`, wantCode: http.StatusOK},
		{name: "missing", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "out of range", body: `{"volume":150}`, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewDeviceHandler(&fakeDevice{})
			assert.Equal(t, tt.wantCode, post(t, h.Volume, tt.body).Code)
		})
	}
}

func TestDeviceHandler_Mute(t *testing.T) {
	device := &fakeDevice{}
	h := NewDeviceHandler(device)

	rr := post(t, h.Mute, `{"muted":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var got application.Status
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.True(t, got.Muted)

	assert.Equal(t, http.StatusBadRequest, post(t, h.Mute, `{}`).Code)
}

func TestDeviceHandler_Prompt(t *testing.T) {
	device := &fakeDevice{}
	h := NewDeviceHandler(device)

	assert.Equal(t, http.StatusAccepted, post(t, h.Prompt, `{"url":"file:///prompts/chime.mp3"}`).Code)
	assert.Equal(t, "file:///prompts/chime.mp3", device.lastURL)
	assert.Equal(t, http.StatusBadRequest, post(t, h.Prompt, `{"url":""}`).Code)
}

func TestDeviceHandler_UserInfoAndDump(t *testing.T) {
	device := &fakeDevice{}
	h := NewDeviceHandler(device)

	assert.Equal(t, http.StatusAccepted, post(t, h.UserInfo, ``).Code)
	assert.Equal(t, http.StatusAccepted, post(t, h.Dump, ``).Code)
	assert.True(t, device.called("userinfo"))
	assert.True(t, device.called("dump"))
}

func TestRespondDomainError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: domain.ErrInvalidInput, want: http.StatusBadRequest},
		{err: fmt.Errorf("wrapped: %w", domain.ErrNotActive), want: http.StatusConflict},
		{err: domain.ErrLooperStopped, want: http.StatusServiceUnavailable},
		{err: fmt.Errorf("disk full"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		respondDomainError(rr, tt.err)
		assert.Equal(t, tt.want, rr.Code, tt.err.Error())
	}
}
