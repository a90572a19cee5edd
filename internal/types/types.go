// Package types holds the JSON shapes the API answers with.
package types

import (
	"time"
)

type Profile struct {
	Id                        string    `json:"id"`
	Username                  string    `json:"username"`
	AvatarURL                 string    `json:"avatar_url,omitempty"`
	PreferenceEventCategoryId *int64    `json:"preference_event_category_id,omitempty"`
	UpdatedAt                 time.Time `json:"updated_at,omitempty"`
}

type Session struct {
	UserId    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Profile   *Profile  `json:"profile,omitempty"`
}

type Category struct {
	Id    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Owner is the public part of the profile that created a row.
type Owner struct {
	Id        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type Event struct {
	Id          int64     `json:"id"`
	Category    Category  `json:"category"`
	Owner       Owner     `json:"owner"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	LikeCount   int       `json:"like_count"`
	JoinCount   int       `json:"join_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type Question struct {
	Id           int64     `json:"id"`
	Category     Category  `json:"category"`
	Owner        *Owner    `json:"owner,omitempty"`
	QuestionText string    `json:"question_text"`
	Anonymous    bool      `json:"anonymous"`
	AiAnswer     string    `json:"ai_answer,omitempty"`
	LikeCount    int       `json:"like_count"`
	SaveCount    int       `json:"save_count"`
	AnswerCount  int       `json:"answer_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type Answer struct {
	Id         int64     `json:"id"`
	QuestionId int64     `json:"question_id"`
	Author     Owner     `json:"author"`
	AnswerText string    `json:"answer_text"`
	CreatedAt  time.Time `json:"created_at"`
}

type Quote struct {
	Id        int64     `json:"id"`
	Owner     Owner     `json:"owner"`
	Quote     string    `json:"quote"`
	LikeCount int       `json:"like_count"`
	CreatedAt time.Time `json:"created_at"`
}

type Photo struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type AssociationCount struct {
	Kind     string `json:"kind"`
	TargetId int64  `json:"target_id"`
	Count    int    `json:"count"`
}

type Memberships struct {
	Kind      string  `json:"kind"`
	TargetIds []int64 `json:"target_ids"`
}
