package chat

import "fmt"

// Transcript is the ordered conversation. Entries are only ever appended;
// Reset is the single way to drop them. It is not safe for concurrent use.
type Transcript struct {
	messages []Message
}

func NewTranscript(greeting Message) *Transcript {
	t := &Transcript{}
	t.Reset(greeting)
	return t
}

// Append adds m to the end. Transcript entries are user or assistant turns.
func (t *Transcript) Append(m Message) error {
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return fmt.Errorf("transcript entries must be user or assistant, got %q", m.Role)
	}
	t.messages = append(t.messages, m)
	return nil
}

func (t *Transcript) Reset(greeting Message) {
	t.messages = []Message{greeting}
}

func (t *Transcript) Len() int {
	return len(t.messages)
}

func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

func (t *Transcript) Find(id string) (Message, bool) {
	for _, m := range t.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// Messages returns a copy of every entry.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// History returns the entries that count as real conversation: error reports
// are always dropped and the greeting only survives when includeGreeting is set.
func (t *Transcript) History(includeGreeting bool) []Message {
	out := make([]Message, 0, len(t.messages))
	for _, m := range t.messages {
		if m.IsError {
			continue
		}
		if m.Greeting && !includeGreeting {
			continue
		}
		out = append(out, m)
	}
	return out
}
