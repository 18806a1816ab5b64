package transport

// RunRequest is the body of POST /run.
type RunRequest struct {
	Code string `json:"code"`
}

// SendInputRequest is the body of POST /send_input.
type SendInputRequest struct {
	Input string `json:"input"`
}

// SendInputResponse is the success body of POST /send_input.
type SendInputResponse struct {
	Output string `json:"output"`
}

// WSRunRequest is the first and only message a client sends on /ws/run.
type WSRunRequest struct {
	Code string
}

// WSRunMessage is a message sent by the server on /ws/run.
// Messages before the last carry output bytes. Only the last message of the stream has Done set,
// along with the exit code, or Err when the program could not be run.
type WSRunMessage struct {
	Output []byte

	Done     bool
	ExitCode int
	Err      string
}
