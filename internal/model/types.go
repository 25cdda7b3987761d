package model

type Participant struct {
	ConnectionID string
	Username     string
	Room         string
	JoinedAt     int64
}

type User struct {
	Username string `json:"username"`
}

type Message struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

type LocationMessage struct {
	Username  string `json:"username"`
	URL       string `json:"url"`
	CreatedAt int64  `json:"createdAt"`
}

type RoomData struct {
	Room  string `json:"room"`
	Users []User `json:"users"`
}

type RoomSummary struct {
	Room  string `json:"room"`
	Users int    `json:"users"`
}
