package gemini

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one entry in the conversation history.
type Turn struct {
	Role Role
	Text string
}

// geminiRequest is the streamGenerateContent request body.
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

// buildRequest translates the conversation history into the wire shape:
// one content entry per turn, each with a single text part.
func buildRequest(history []Turn) *geminiRequest {
	contents := make([]geminiContent, 0, len(history))
	for _, turn := range history {
		contents = append(contents, geminiContent{
			Role:  string(turn.Role),
			Parts: []geminiPart{{Text: turn.Text}},
		})
	}
	return &geminiRequest{Contents: contents}
}
