package ports

import "github.com/longregen/alicia-edge/internal/domain"

// Vendor exposes device identity and speaker hardware. Any string getter may
// return "" when the value is not configured.
type Vendor interface {
	BizType() string
	BizGroup() string
	BizSecret() string
	CACert() []byte
	MACAddr() string
	UUID() string
	AccessToken() string

	SpeakerVolume() int
	SpeakerMuted() bool
	// SetSpeakerVolume returns false if the hardware refused the value
	SetSpeakerVolume(volume int) bool
	SetSpeakerMuted(muted bool) bool
}

// CredentialStore persists the account credentials issued by the gateway.
type CredentialStore interface {
	// Load returns domain.ErrNotFound when nothing has been saved
	Load() (domain.Credentials, error)
	Save(creds domain.Credentials) error
	Clear() error
}
