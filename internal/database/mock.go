package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockDiaYouthRepository struct {
	mock.Mock
}

func (m *MockDiaYouthRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockDiaYouthRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockDiaYouthRepository) GetAccountById(ctx context.Context, id string) (Account, error) {
	args := m.Called(id)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockDiaYouthRepository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockDiaYouthRepository) UpdateAccountPassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(id, passwordHash)
	return args.Error(0)
}
func (m *MockDiaYouthRepository) UpsertProfile(ctx context.Context, params UpsertProfileParams) (Profile, error) {
	args := m.Called(params)
	return args.Get(0).(Profile), args.Error(1)
}
func (m *MockDiaYouthRepository) GetProfile(ctx context.Context, id string) (Profile, error) {
	args := m.Called(id)
	return args.Get(0).(Profile), args.Error(1)
}
func (m *MockDiaYouthRepository) SetProfileAvatar(ctx context.Context, id, avatarPath string) (Profile, error) {
	args := m.Called(id, avatarPath)
	return args.Get(0).(Profile), args.Error(1)
}
func (m *MockDiaYouthRepository) ListEventCategories(ctx context.Context) ([]Category, error) {
	args := m.Called()
	return args.Get(0).([]Category), args.Error(1)
}
func (m *MockDiaYouthRepository) ListQuestionCategories(ctx context.Context) ([]Category, error) {
	args := m.Called()
	return args.Get(0).([]Category), args.Error(1)
}
func (m *MockDiaYouthRepository) ListEvents(ctx context.Context, filter ListFilter) ([]Event, error) {
	args := m.Called(filter)
	return args.Get(0).([]Event), args.Error(1)
}
func (m *MockDiaYouthRepository) PopularEvents(ctx context.Context, userId string, limit int) ([]Event, error) {
	args := m.Called(userId, limit)
	return args.Get(0).([]Event), args.Error(1)
}
func (m *MockDiaYouthRepository) GetEvent(ctx context.Context, id int64) (Event, error) {
	args := m.Called(id)
	return args.Get(0).(Event), args.Error(1)
}
func (m *MockDiaYouthRepository) CreateEvent(ctx context.Context, params CreateEventParams) (Event, error) {
	args := m.Called(params)
	return args.Get(0).(Event), args.Error(1)
}
func (m *MockDiaYouthRepository) UpdateEvent(ctx context.Context, params UpdateEventParams) (Event, error) {
	args := m.Called(params)
	return args.Get(0).(Event), args.Error(1)
}
func (m *MockDiaYouthRepository) DeleteEvent(ctx context.Context, id int64, userId string) error {
	args := m.Called(id, userId)
	return args.Error(0)
}
func (m *MockDiaYouthRepository) ListQuestions(ctx context.Context, filter ListFilter) ([]Question, error) {
	args := m.Called(filter)
	return args.Get(0).([]Question), args.Error(1)
}
func (m *MockDiaYouthRepository) GetQuestion(ctx context.Context, id int64) (Question, error) {
	args := m.Called(id)
	return args.Get(0).(Question), args.Error(1)
}
func (m *MockDiaYouthRepository) CreateQuestion(ctx context.Context, params CreateQuestionParams) (Question, error) {
	args := m.Called(params)
	return args.Get(0).(Question), args.Error(1)
}
func (m *MockDiaYouthRepository) UpdateQuestion(ctx context.Context, params UpdateQuestionParams) (Question, error) {
	args := m.Called(params)
	return args.Get(0).(Question), args.Error(1)
}
func (m *MockDiaYouthRepository) DeleteQuestion(ctx context.Context, id int64, userId string) error {
	args := m.Called(id, userId)
	return args.Error(0)
}
func (m *MockDiaYouthRepository) ListAnswers(ctx context.Context, questionId int64) ([]Answer, error) {
	args := m.Called(questionId)
	return args.Get(0).([]Answer), args.Error(1)
}
func (m *MockDiaYouthRepository) CreateAnswer(ctx context.Context, params CreateAnswerParams) (Answer, error) {
	args := m.Called(params)
	return args.Get(0).(Answer), args.Error(1)
}
func (m *MockDiaYouthRepository) ListQuotes(ctx context.Context, filter ListFilter) ([]Quote, error) {
	args := m.Called(filter)
	return args.Get(0).([]Quote), args.Error(1)
}
func (m *MockDiaYouthRepository) CreateQuote(ctx context.Context, params CreateQuoteParams) (Quote, error) {
	args := m.Called(params)
	return args.Get(0).(Quote), args.Error(1)
}
func (m *MockDiaYouthRepository) DeleteQuote(ctx context.Context, id int64, userId string) error {
	args := m.Called(id, userId)
	return args.Error(0)
}
