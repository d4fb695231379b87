package handlers

import (
	"net/http"

	"github.com/longregen/alicia-edge/internal/adapters/http/dto"
	"github.com/longregen/alicia-edge/internal/application"
)

// Device is the part of the assistant the debug API drives.
type Device interface {
	Status() application.Status
	Wakeup(word string, doa int, confidence float64) error
	TextRecognize(text string) error
	NetworkConnected()
	NetworkDisconnected()
	SetVolume(volume int) error
	SetMuted(muted bool) error
	PlayPrompt(url string) error
	QueryUserInfo()
	Dump()
}

type DeviceHandler struct {
	device Device
}

func NewDeviceHandler(device Device) *DeviceHandler {
	return &DeviceHandler{device: device}
}

func (h *DeviceHandler) Status(w http.ResponseWriter, r *http.Request) {
	respond(w, r, h.device.Status(), http.StatusOK)
}

// Wakeup simulates the wake word engine firing.
func (h *DeviceHandler) Wakeup(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[dto.WakeupRequest](r, w)
	if !ok {
		return
	}
	if req.Word == "" {
		req.Word = "alicia"
	}
	if err := h.device.Wakeup(req.Word, req.Direction, req.Confidence); err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, r, dto.Accepted(), http.StatusAccepted)
}

func (h *DeviceHandler) Text(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[dto.TextRequest](r, w)
	if !ok {
		return
	}
	if err := h.device.TextRecognize(req.Text); err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, r, dto.Accepted(), http.StatusAccepted)
}

func (h *DeviceHandler) Network(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[dto.NetworkRequest](r, w)
	if !ok {
		return
	}
	if req.Connected {
		h.device.NetworkConnected()
	} else {
		h.device.NetworkDisconnected()
	}
	respond(w, r, dto.Accepted(), http.StatusAccepted)
}

func (h *DeviceHandler) Volume(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[dto.VolumeRequest](r, w)
	if !ok {
		return
	}
	if req.Volume == nil {
		respondError(w, "validation_error", "volume is required", http.StatusBadRequest)
		return
	}
	if err := h.device.SetVolume(*req.Volume); err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, r, h.device.Status(), http.StatusOK)
}

func (h *DeviceHandler) Mute(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[dto.MuteRequest](r, w)
	if !ok {
		return
	}
	if req.Muted == nil {
		respondError(w, "validation_error", "muted is required", http.StatusBadRequest)
		return
	}
	if err := h.device.SetMuted(*req.Muted); err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, r, h.device.Status(), http.StatusOK)
}

func (h *DeviceHandler) Prompt(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[dto.PromptRequest](r, w)
	if !ok {
		return
	}
	if err := h.device.PlayPrompt(req.URL); err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, r, dto.Accepted(), http.StatusAccepted)
}

func (h *DeviceHandler) UserInfo(w http.ResponseWriter, r *http.Request) {
	h.device.QueryUserInfo()
	respond(w, r, dto.Accepted(), http.StatusAccepted)
}

// Dump writes the runtime state to the log.
func (h *DeviceHandler) Dump(w http.ResponseWriter, r *http.Request) {
	h.device.Dump()
	respond(w, r, dto.Accepted(), http.StatusAccepted)
}
