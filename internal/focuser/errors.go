package focuser

import (
	"errors"
	"fmt"
)

// ErrInvalidValue is wrapped by errors for well-formed commands whose
// argument is out of range.
var ErrInvalidValue = errors.New("invalid value")

// ErrNoConfigFile is returned by SAVE when the controller was started
// without a settings file.
var ErrNoConfigFile = errors.New("no config file to save to")

// ParseError reports a command that could not be tokenized or whose
// arguments have the wrong count or type.
type ParseError struct {
	Input  string // raw command, CR/LF stripped
	Reason string
	Err    error // underlying tokenizer or strconv error, may be nil
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
