package domain

// Outcome is the Admission Gate's verdict for one join request.
type Outcome int

const (
	Enqueued Outcome = iota
	RateLimited
	RoomNotFound
	RoomExpired
	RoomFull
	WrongPassword
	TokenInvalid
	TokenRequired
	AlreadyInRoom
)

var outcomeCodes = map[Outcome]string{
	Enqueued:      "enqueued",
	RateLimited:   "rate_limited",
	RoomNotFound:  "room_not_found",
	RoomExpired:   "room_expired",
	RoomFull:      "room_full",
	WrongPassword: "wrong_password",
	TokenInvalid:  "token_invalid",
	TokenRequired: "token_required",
	AlreadyInRoom: "already_in_room",
}

var outcomeReasons = map[Outcome]string{
	Enqueued:      "Waiting for the host to admit you.",
	RateLimited:   "Too many failed attempts. Please wait a minute and try again.",
	RoomNotFound:  "Room does not exist.",
	RoomExpired:   "This meeting has expired.",
	RoomFull:      "This meeting room is full.",
	WrongPassword: "Incorrect password.",
	TokenInvalid:  "Your session token is invalid or has already been used. Please complete the consent form again.",
	TokenRequired: "Access denied. Please use the secure patient link provided by your provider.",
	AlreadyInRoom: "You are already in this meeting.",
}

func (o Outcome) String() string {
	if c, ok := outcomeCodes[o]; ok {
		return c
	}
	return "unknown"
}

// Reason is the only text the requester gets to see.
func (o Outcome) Reason() string {
	return outcomeReasons[o]
}

func (o Outcome) Admitted() bool { return o == Enqueued }
