package bot

// EventKind discriminates incoming updates after platform normalization.
type EventKind int

const (
	// EventText is a plain text message.
	EventText EventKind = iota
	// EventCallback is an inline button press; Text carries the payload.
	EventCallback
	// EventLocation is a shared location.
	EventLocation
	// EventPayment is a confirmed successful payment.
	EventPayment
)

// Location is a shared coordinate pair.
type Location struct {
	Lat float64
	Lon float64
}

// Event is a platform-neutral incoming update. ChatID is already scoped to
// the platform by the front end.
type Event struct {
	ChatID   string
	Username string
	Kind     EventKind
	Text     string
	Location Location
}
