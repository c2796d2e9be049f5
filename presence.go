package dhandha

import "sort"

type Presence struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// RoomPresence lists the current members of a room, ordered by user id
// for stable output. An unknown room yields an empty slice.
func (reg *Registry) RoomPresence(room string) []Presence {
	reg.mu.RLock()
	members := reg.rooms[room]
	presences := make([]Presence, 0, len(members))
	for id, s := range members {
		presences = append(presences, Presence{
			SessionID: id,
			UserID:    s.Identity(),
		})
	}
	reg.mu.RUnlock()

	sort.Slice(presences, func(i, j int) bool {
		if presences[i].UserID != presences[j].UserID {
			return presences[i].UserID < presences[j].UserID
		}
		return presences[i].SessionID < presences[j].SessionID
	})
	return presences
}
