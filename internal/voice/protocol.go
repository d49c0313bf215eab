// Package voice runs the live voice-lab session: a bidirectional websocket
// stream of base64 PCM16 audio and transcript fragments against the Gemini
// realtime endpoint.
package voice

// DefaultEndpoint is the Gemini bidirectional streaming endpoint. Tests
// override it with a local websocket server.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// Wire types for the bidi protocol. Exactly one top-level field is set per
// message in each direction.

type clientSetupMessage struct {
	Setup *setupPayload `json:"setup,omitempty"`
}

type setupPayload struct {
	Model                    string            `json:"model"`
	GenerationConfig         *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction        *contentPayload   `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}         `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}         `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type contentPayload struct {
	Role  string        `json:"role,omitempty"`
	Parts []partPayload `json:"parts,omitempty"`
}

type partPayload struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineBlob `json:"inlineData,omitempty"`
}

type inlineBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type clientRealtimeMessage struct {
	RealtimeInput *realtimeInput `json:"realtimeInput,omitempty"`
}

type realtimeInput struct {
	MediaChunks []inlineBlob `json:"mediaChunks,omitempty"`
}

type clientContentMessage struct {
	ClientContent *clientContent `json:"clientContent,omitempty"`
}

type clientContent struct {
	Turns        []contentPayload `json:"turns,omitempty"`
	TurnComplete bool             `json:"turnComplete,omitempty"`
}

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
}

type serverContent struct {
	ModelTurn           *contentPayload `json:"modelTurn,omitempty"`
	TurnComplete        bool            `json:"turnComplete,omitempty"`
	Interrupted         bool            `json:"interrupted,omitempty"`
	InputTranscription  *transcription  `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription  `json:"outputTranscription,omitempty"`
}

type transcription struct {
	Text string `json:"text"`
}
