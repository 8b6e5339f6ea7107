package handlers

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/minchat/apiserver/internal/services"
	"github.com/minchat/apiserver/internal/store"
	"github.com/minchat/apiserver/types"
)

// fakeMemberRepo is an in-memory services.MemberRepository.
type fakeMemberRepo struct {
	nextID  int64
	members map[int64]types.Member
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{members: make(map[int64]types.Member)}
}

func (f *fakeMemberRepo) GetByID(_ context.Context, id int64) (types.Member, error) {
	if member, ok := f.members[id]; ok {
		return member, nil
	}
	return types.Member{}, store.ErrNotFound
}

func (f *fakeMemberRepo) GetByUsername(_ context.Context, username string) (types.Member, error) {
	for _, member := range f.members {
		if member.Username == username {
			return member, nil
		}
	}
	return types.Member{}, store.ErrNotFound
}

func (f *fakeMemberRepo) GetByToken(_ context.Context, token string) (types.Member, error) {
	for _, member := range f.members {
		if member.AuthToken != "" && member.AuthToken == token {
			return member, nil
		}
	}
	return types.Member{}, store.ErrNotFound
}

func (f *fakeMemberRepo) Create(_ context.Context, member types.Member) (types.Member, error) {
	for _, existing := range f.members {
		if existing.Username == member.Username {
			return types.Member{}, store.ErrDuplicateUsername
		}
	}
	f.nextID++
	member.ID = f.nextID
	member.CreatedAt = time.Now()
	f.members[member.ID] = member
	return member, nil
}

func (f *fakeMemberRepo) SetToken(_ context.Context, id int64, token string) error {
	member, ok := f.members[id]
	if !ok {
		return store.ErrNotFound
	}
	member.AuthToken = token
	f.members[id] = member
	return nil
}

// fakeMessageRepo is an in-memory services.MessageRepository that keeps
// messages in insertion order.
type fakeMessageRepo struct {
	nextID   int64
	messages []types.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (f *fakeMessageRepo) List(_ context.Context, offset, limit int) ([]types.Message, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 50
	}

	total := len(f.messages)
	if offset >= total {
		return []types.Message{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	window := make([]types.Message, end-offset)
	copy(window, f.messages[offset:end])
	return window, total, nil
}

func (f *fakeMessageRepo) Create(_ context.Context, memberID int64, text string) (types.Message, error) {
	f.nextID++
	message := types.Message{
		ID:        f.nextID,
		MemberID:  memberID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	f.messages = append(f.messages, message)
	return message, nil
}

// newTestRouter wires the handlers the way internal/server does, backed
// by the in-memory fakes.
func newTestRouter() (*chi.Mux, *fakeMemberRepo, *fakeMessageRepo) {
	memberRepo := newFakeMemberRepo()
	messageRepo := newFakeMessageRepo()

	memberService := services.NewMemberService(memberRepo)
	messageService := services.NewMessageService(messageRepo, nil)

	router := chi.NewRouter()
	AuthRouter(router, memberService)
	MessageRouter(router, messageService, Authenticate(memberService))
	return router, memberRepo, messageRepo
}
