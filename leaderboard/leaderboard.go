package leaderboard

// Entry is one player's best score on a board.
type Entry struct {
	Name  string
	Score int64
}

// Board keeps entries ordered by score descending, name ascending.
type Board interface {
	// Update sets name's score unconditionally.
	Update(name string, score int64)
	// UpdateIfHigher sets name's score only when it strictly beats the current
	// one. It returns the entry held afterwards, whether it changed, and the
	// previous entry if there was one.
	UpdateIfHigher(name string, score int64) (cur Entry, updated bool, prev *Entry)
	Get(name string) (Entry, bool)
	// Entries returns every entry in board order.
	Entries() []Entry
	Len() int
}
