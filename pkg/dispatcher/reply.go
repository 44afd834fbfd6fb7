package dispatcher

// ReplyKind tells the transport how to render a Reply
type ReplyKind string

const (
	ReplyPrompt ReplyKind = "prompt"
	ReplyError  ReplyKind = "error"
	ReplyResult ReplyKind = "result"
)

// Reply describes the answer to one event. A result reply carries the path
// of the produced file; the transport sends it and then calls Release.
type Reply struct {
	Kind     ReplyKind
	Text     string
	FilePath string
	// FileName is the name the file should be delivered under
	FileName string
	// Menu asks the transport to attach the operation menu
	Menu bool
	// Err is the failure behind an error reply
	Err error

	release func()
}

// Release deletes the result file. It is safe to call more than once and on
// replies without a file.
func (r Reply) Release() {
	if r.release != nil {
		r.release()
	}
}

// HasFile reports whether the reply carries a file to deliver
func (r Reply) HasFile() bool {
	return r.Kind == ReplyResult && r.FilePath != ""
}

func prompt(text string) Reply {
	return Reply{Kind: ReplyPrompt, Text: text}
}
