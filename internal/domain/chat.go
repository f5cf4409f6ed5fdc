package domain

import (
	"sort"
	"time"
)

type SendState struct {
	Username  string       `json:"username"`
	SendState ReceiveState `json:"send_state"`
}

type Message struct {
	ID           ID          `json:"_id"`
	Sender       string      `json:"sender"`
	CreationDate time.Time   `json:"creation_date"`
	Text         string      `json:"text"`
	SendStates   []SendState `json:"send_states"`
}

// StateOf returns the entry of user, if any.
func (m Message) StateOf(user string) (ReceiveState, bool) {
	for _, s := range m.SendStates {
		if s.Username == user {
			return s.SendState, true
		}
	}
	return "", false
}

type Room struct {
	ID       ID        `json:"_id"`
	Name     *string   `json:"name"`
	Members  []string  `json:"members"`
	Messages []Message `json:"messages"`
}

func (r Room) IsMember(user string) bool { return containsString(r.Members, user) }

// NewMessage builds a message whose send states cover exactly the room members. The sender's entry
// is acknowledged; the others are sent when online(user) holds, pending otherwise.
func (r Room) NewMessage(sender, text string, now time.Time, online func(string) bool) Message {
	states := make([]SendState, 0, len(r.Members))
	for _, m := range r.Members {
		state := StatePending
		switch {
		case m == sender:
			state = StateAcknowledged
		case online(m):
			state = StateSent
		}
		states = append(states, SendState{Username: m, SendState: state})
	}
	return Message{ID: NewID(), Sender: sender, CreationDate: now, Text: text, SendStates: states}
}

// MemberKey normalizes a member set so set-equal rooms compare equal.
func MemberKey(members []string) []string {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
