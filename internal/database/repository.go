package database

import "context"

type DiaYouthRepository interface {
	Ping(ctx context.Context) error

	CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error)
	GetAccountById(ctx context.Context, id string) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	UpdateAccountPassword(ctx context.Context, id, passwordHash string) error

	UpsertProfile(ctx context.Context, params UpsertProfileParams) (Profile, error)
	GetProfile(ctx context.Context, id string) (Profile, error)
	SetProfileAvatar(ctx context.Context, id, avatarPath string) (Profile, error)

	ListEventCategories(ctx context.Context) ([]Category, error)
	ListQuestionCategories(ctx context.Context) ([]Category, error)

	ListEvents(ctx context.Context, filter ListFilter) ([]Event, error)
	PopularEvents(ctx context.Context, userId string, limit int) ([]Event, error)
	GetEvent(ctx context.Context, id int64) (Event, error)
	CreateEvent(ctx context.Context, params CreateEventParams) (Event, error)
	UpdateEvent(ctx context.Context, params UpdateEventParams) (Event, error)
	DeleteEvent(ctx context.Context, id int64, userId string) error

	ListQuestions(ctx context.Context, filter ListFilter) ([]Question, error)
	GetQuestion(ctx context.Context, id int64) (Question, error)
	CreateQuestion(ctx context.Context, params CreateQuestionParams) (Question, error)
	UpdateQuestion(ctx context.Context, params UpdateQuestionParams) (Question, error)
	DeleteQuestion(ctx context.Context, id int64, userId string) error
	ListAnswers(ctx context.Context, questionId int64) ([]Answer, error)
	CreateAnswer(ctx context.Context, params CreateAnswerParams) (Answer, error)

	ListQuotes(ctx context.Context, filter ListFilter) ([]Quote, error)
	CreateQuote(ctx context.Context, params CreateQuoteParams) (Quote, error)
	DeleteQuote(ctx context.Context, id int64, userId string) error
}
