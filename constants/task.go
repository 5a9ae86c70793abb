package constants

// Task names a kind of LLM round-trip. The value is used as the cache bucket,
// the mock fixture infix and the log attribute.
type Task string

const (
	TaskText  Task = "text"
	TaskImage Task = "image"
	TaskTags  Task = "tags"
)

func (t Task) String() string { return string(t) }
