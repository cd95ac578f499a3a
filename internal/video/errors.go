package video

import "fmt"

// EncodingFailedError reports a non-zero encoder exit or a broken frame
// stream. Stderr holds the bounded tail of the encoder's diagnostics.
type EncodingFailedError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *EncodingFailedError) Error() string {
	msg := fmt.Sprintf("encoding failed (exit %d)", e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

func (e *EncodingFailedError) Unwrap() error { return e.Err }

// MuxFailedError reports a failed audio/video mux.
type MuxFailedError struct {
	ExitCode int
	Stderr   string
}

func (e *MuxFailedError) Error() string {
	return fmt.Sprintf("mux failed (exit %d): %s", e.ExitCode, e.Stderr)
}
