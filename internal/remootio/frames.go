package remootio

// FrameType identifies a top level API frame.
type FrameType string

const (
	FrameHello       FrameType = "HELLO"
	FrameServerHello FrameType = "SERVER_HELLO"
	FrameAuth        FrameType = "AUTH"
	FrameEncrypted   FrameType = "ENCRYPTED"
	FramePing        FrameType = "PING"
	FramePong        FrameType = "PONG"
	FrameError       FrameType = "ERROR"
)

// Action and event names carried inside encrypted payloads.
const (
	ActionQuery      = "QUERY"
	EventStateChange = "StateChange"
)

// Frame is a JSON text frame exchanged with the device.
type Frame struct {
	Type         FrameType      `json:"type"`
	APIVersion   int            `json:"apiVersion,omitempty"`
	SerialNumber string         `json:"serialNumber,omitempty"`
	Message      string         `json:"message,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	Data         *EncryptedData `json:"data,omitempty"`
	MAC          string         `json:"mac,omitempty"`
}

// EncryptedData is the body of an ENCRYPTED frame. The MAC is computed over
// its JSON encoding, so field order matters.
type EncryptedData struct {
	IV      string `json:"iv"`
	Payload string `json:"payload"`
}

// Payload is the decrypted content of an ENCRYPTED frame. Exactly one field
// is set.
type Payload struct {
	Challenge *Challenge `json:"challenge,omitempty"`
	Action    *Action    `json:"action,omitempty"`
	Response  *Response  `json:"response,omitempty"`
	Event     *Event     `json:"event,omitempty"`
}

// Challenge is sent by the device after AUTH. Later frames are encrypted with
// the session key.
type Challenge struct {
	SessionKey      string `json:"sessionKey"`
	InitialActionID int    `json:"initialActionId"`
}

// Action is a client request.
type Action struct {
	Type string `json:"type"`
	ID   int    `json:"id"`
}

// Response answers an Action.
type Response struct {
	Type           string `json:"type"`
	ID             int    `json:"id"`
	Success        bool   `json:"success"`
	State          string `json:"state,omitempty"`
	RelayTriggered bool   `json:"relayTriggered"`
	ErrorCode      string `json:"errorCode,omitempty"`
}

// Event is pushed by the device without a prior request.
type Event struct {
	Type   string `json:"type"`
	State  string `json:"state,omitempty"`
	T100ms int    `json:"t100ms,omitempty"`
}

// maxActionID bounds action ids; the next id wraps modulo this value.
const maxActionID = 0x7FFFFFFF

// NextActionID returns the id that follows last.
func NextActionID(last int) int {
	return (last + 1) % maxActionID
}
