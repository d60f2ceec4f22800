package domain

import "encoding/json"

type Room struct {
	ID   ID     `json:"chatroomId"`
	Name string `json:"name"`
}

// accept both {"chatroomId":..} and {"id":..}
func (r *Room) UnmarshalJSON(b []byte) error {
	var raw struct {
		ChatroomID ID     `json:"chatroomId"`
		ID         ID     `json:"id"`
		Name       string `json:"name"`
		Title      string `json:"title"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.ID = raw.ChatroomID
	if r.ID == "" {
		r.ID = raw.ID
	}
	r.Name = raw.Name
	if r.Name == "" {
		r.Name = raw.Title
	}
	return nil
}

type Participant struct {
	UserID   ID     `json:"userId"`
	Nickname string `json:"nickname"`
}
