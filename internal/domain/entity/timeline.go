package entity

import "time"

// TimelineEntry is one line of an aggregate's audit trail. Entries are only
// ever appended.
type TimelineEntry struct {
	Event       string    `json:"event" firestore:"event"`
	Description string    `json:"description" firestore:"description"`
	Date        time.Time `json:"date" firestore:"date"`
	By          string    `json:"by" firestore:"by"`
}

// CountEvents returns how many entries of the given event a timeline holds.
func CountEvents(timeline []TimelineEntry, event string) int {
	n := 0
	for _, t := range timeline {
		if t.Event == event {
			n++
		}
	}
	return n
}
