package console

import (
	"fmt"
	"os"
	"path/filepath"
)

// Lines the console writes to the history on its own behalf.
const (
	RunningMarker = ">>> Running..."
	EchoPrefix    = ">>> "

	MsgRunError   = "Error running the code"
	MsgNoProcess  = "Error: No running process"
	MsgSendError  = "Error sending input"
	MsgSaved      = "File saved as " + SaveFileName
	MsgSaveError  = "Error saving file"
	MsgNewSource  = "Code editor cleared"
	SaveFileName  = "code.py"
	commandSave   = "save"
	commandClear  = "clear"
	commandNew    = "new"
	commandHelp   = "help"
	sourceFileExt = ".py"
)

var helpLines = []string{
	"Available commands:",
	"save - Saves the current code as a .py file",
	"clear - Clears the terminal history",
	"new - Clears the code editor",
	"help - Shows this help message",
}

// HelpLines returns the lines printed by the help command.
func HelpLines() []string {
	return append([]string(nil), helpLines...)
}

// Saver stores the source text under a file name.
type Saver interface {
	Save(name string, src string) error
}

// DirSaver saves files into a directory.
type DirSaver struct {
	Dir string
}

func (d DirSaver) Save(name string, src string) error {
	path := filepath.Join(d.Dir, name)
	if d.Dir != "" {
		err := os.MkdirAll(d.Dir, 0777)
		if err != nil {
			return fmt.Errorf("making save dir: %w", err)
		}
	}
	err := os.WriteFile(path, []byte(src), 0644)
	if err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}

// dispatch runs a local command. The caller holds s.mu.
// Unknown text is dropped without a trace in the history.
func (s *Session) dispatch(text string) {
	switch text {
	case commandSave:
		err := s.saver.Save(SaveFileName, s.source)
		if err != nil {
			s.log.Debugf("error saving source: %s", err)
			s.history.Append(MsgSaveError)
			return
		}
		s.history.Append(MsgSaved)
	case commandClear:
		s.history.Clear()
	case commandNew:
		s.source = ""
		s.history.Append(MsgNewSource)
	case commandHelp:
		s.history.Append(helpLines...)
	default:
		s.log.Debugw("discarding unknown command", "Text", text)
	}
}
