package domain

import "time"

// Participant is a source row the homepage queries aggregate over.
type Participant struct {
	Username  string
	Giving    int64 // cents per week
	Receiving int64 // cents per week
	Claimed   bool
}

// GlobalStats are the site-wide counters recomputed by the refresh loop.
type GlobalStats struct {
	NParticipants  int       `json:"nparticipants"`
	TransferVolume int64     `json:"transfer_volume"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HomepageEntry is one row of a homepage top list.
type HomepageEntry struct {
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
}

// Homepage is the cached result of the homepage queries.
type Homepage struct {
	TopGivers    []HomepageEntry `json:"top_givers"`
	TopReceivers []HomepageEntry `json:"top_receivers"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
