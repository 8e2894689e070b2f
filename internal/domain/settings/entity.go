package settings

// Keys of the settings table.
const (
	KeyDefaultVoiceRecognition = "default_voice_recognition"
)

// Defaults is what GET /defaults returns.
type Defaults struct {
	VoiceRecognition string `json:"default_voice_recognition"`
}
