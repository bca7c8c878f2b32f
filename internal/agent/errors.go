package agent

import "errors"

var (
	// ErrLLMCall reports that the completion backend returned an error.
	ErrLLMCall = errors.New("llm call failed")
	// ErrDiagnosisParse reports a reply that is not a valid diagnosis.
	ErrDiagnosisParse = errors.New("cannot parse diagnosis")
	// ErrPatchParse reports a reply with no usable code.
	ErrPatchParse = errors.New("cannot parse patch")
	// ErrPatchWrite reports that the patched copy could not be written.
	ErrPatchWrite = errors.New("cannot write patch")
)
