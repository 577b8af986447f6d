package models

// Fragment is one unit of the caller-facing stream: either text or the
// terminal error.
type Fragment struct {
	Text string
	// Progress marks status lines that are not part of the verdict.
	Progress bool
	Err      *PipelineError
}

func TextFragment(text string) Fragment {
	return Fragment{Text: text}
}

func ProgressFragment(text string) Fragment {
	return Fragment{Text: text, Progress: true}
}

func ErrorFragment(err error) Fragment {
	return Fragment{Err: AsPipelineError(err)}
}

func (f Fragment) IsError() bool { return f.Err != nil }

// Render returns the bytes written to the client.
func (f Fragment) Render() string {
	if f.Err != nil {
		return "\n[ERROR: " + f.Err.Error() + "]"
	}
	return f.Text
}
