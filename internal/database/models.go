package database

import "time"

type Account struct {
	Id           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type Profile struct {
	Id                        string    `db:"id"`
	Username                  string    `db:"username"`
	AvatarPath                string    `db:"avatar_path"`
	PreferenceEventCategoryId *int64    `db:"preference_event_category_id"`
	UpdatedAt                 time.Time `db:"updated_at"`
}

type Category struct {
	Id    int64  `db:"id"`
	Name  string `db:"name"`
	Color string `db:"color"`
}

type Event struct {
	Id              int64     `db:"id"`
	UserId          string    `db:"user_id"`
	CategoryId      int64     `db:"category_id"`
	Name            string    `db:"name"`
	Description     string    `db:"description"`
	Location        string    `db:"location"`
	Date            time.Time `db:"date"`
	StartTime       string    `db:"start_time"`
	PhotoPath       string    `db:"photo_path"`
	CreatedAt       time.Time `db:"created_at"`
	CategoryName    string    `db:"category_name"`
	CategoryColor   string    `db:"category_color"`
	OwnerUsername   string    `db:"owner_username"`
	OwnerAvatarPath string    `db:"owner_avatar_path"`
	LikeCount       int       `db:"like_count"`
	JoinCount       int       `db:"join_count"`
}

type Question struct {
	Id            int64     `db:"id"`
	UserId        string    `db:"user_id"`
	CategoryId    int64     `db:"category_id"`
	QuestionText  string    `db:"question_text"`
	Anonymous     bool      `db:"anonymous"`
	AiAnswer      string    `db:"ai_answer"`
	CreatedAt     time.Time `db:"created_at"`
	CategoryName  string    `db:"category_name"`
	CategoryColor string    `db:"category_color"`
	OwnerUsername string    `db:"owner_username"`
	LikeCount     int       `db:"like_count"`
	SaveCount     int       `db:"save_count"`
	AnswerCount   int       `db:"answer_count"`
}

type Answer struct {
	Id               int64     `db:"id"`
	QuestionId       int64     `db:"question_id"`
	UserId           string    `db:"user_id"`
	AnswerText       string    `db:"answer_text"`
	CreatedAt        time.Time `db:"created_at"`
	AuthorUsername   string    `db:"author_username"`
	AuthorAvatarPath string    `db:"author_avatar_path"`
}

type Quote struct {
	Id            int64     `db:"id"`
	UserId        string    `db:"user_id"`
	Quote         string    `db:"quote"`
	CreatedAt     time.Time `db:"created_at"`
	OwnerUsername string    `db:"owner_username"`
	LikeCount     int       `db:"like_count"`
}

// CreateAccountParams creates a local account together with its profile.
type CreateAccountParams struct {
	Id           string
	Email        string
	PasswordHash string
	Profile      UpsertProfileParams
}

type UpsertProfileParams struct {
	Id                        string
	Username                  string
	PreferenceEventCategoryId *int64
}

type CreateEventParams struct {
	UserId      string
	CategoryId  int64
	Name        string
	Description string
	Location    string
	Date        time.Time
	StartTime   string
	PhotoPath   string
}

type UpdateEventParams struct {
	Id     int64
	UserId string
	CreateEventParams
}

type CreateQuestionParams struct {
	UserId       string
	CategoryId   int64
	QuestionText string
	Anonymous    bool
}

type UpdateQuestionParams struct {
	Id           int64
	UserId       string
	QuestionText string
}

type CreateAnswerParams struct {
	QuestionId int64
	UserId     string
	AnswerText string
}

type CreateQuoteParams struct {
	UserId string
	Quote  string
}

// ListFilter narrows list queries. Empty fields do not filter. Results keep
// the table's natural order regardless of filters.
type ListFilter struct {
	CategoryIds []int64
	Ids         []int64
	OwnerId     string
	Limit       int
	// Ascending lists oldest first, e.g. upcoming events.
	Ascending bool
}
