package entity

type Player struct {
	ID       string `json:"id"`
	Mark     string `json:"mark,omitempty"`
	RoomCode string `json:"room_code,omitempty"`
}
