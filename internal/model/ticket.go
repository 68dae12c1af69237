package model

// Cell flag values.
const (
	FlagSet   = "1"
	FlagUnset = "0"
)

// Ticket is one spreadsheet row materialized through a ColumnMap.
// Position is the row's 0-based index in the fetched range; position 0
// is the header and never a ticket.
type Ticket struct {
	Position  int    `json:"position" toml:"position"`
	Account   string `json:"account" toml:"account"`
	Processed string `json:"processed,omitempty" toml:"processed,omitempty"`
	Selected  string `json:"selected,omitempty" toml:"selected,omitempty"`
	Excluded  bool   `json:"excluded,omitempty" toml:"excluded,omitempty"`
	Assignee  string `json:"assignee,omitempty" toml:"assignee,omitempty"`
	Phone     string `json:"phone,omitempty" toml:"phone,omitempty"`
	Device    string `json:"device,omitempty" toml:"device,omitempty"`
	Location  string `json:"location,omitempty" toml:"location,omitempty"`
	Name      string `json:"name,omitempty" toml:"name,omitempty"`
	Pinyin    string `json:"pinyin,omitempty" toml:"pinyin,omitempty"`
	PassID    string `json:"pass_id,omitempty" toml:"pass_id,omitempty"`
	ContactID string `json:"contact_id,omitempty" toml:"contact_id,omitempty"`
	Note      string `json:"note,omitempty" toml:"note,omitempty"`
}

// Done reports whether the ticket is terminal.
func (t *Ticket) Done() bool {
	return t.Processed == FlagSet
}

// SheetInfo identifies one sheet (tab) of the remote document.
type SheetInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// RaceLost describes a claim candidate that another caller appears to hold
// after the settle delay. Winner is the assignee read back; it is empty when
// the write had not become visible yet or the verification read failed
// (ReadErr is set in the latter case).
type RaceLost struct {
	Position int    `json:"position"`
	Winner   string `json:"winner,omitempty"`
	ReadErr  string `json:"read_err,omitempty"`
}

// Claim is the result of a successful claim: the ticket now held by User.
// Resumed is true when the ticket was the caller's own unfinished row.
// Contended lists candidates lost to other callers along the way.
type Claim struct {
	User      string     `json:"user"`
	Ticket    *Ticket    `json:"ticket"`
	Resumed   bool       `json:"resumed"`
	Contended []RaceLost `json:"contended,omitempty"`
}
