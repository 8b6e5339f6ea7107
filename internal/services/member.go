package services

import (
	"context"

	"github.com/minchat/apiserver/types"
)

// MemberRepository defines persistence operations for members.
type MemberRepository interface {
	GetByID(ctx context.Context, id int64) (types.Member, error)
	GetByUsername(ctx context.Context, username string) (types.Member, error)
	GetByToken(ctx context.Context, token string) (types.Member, error)
	Create(ctx context.Context, member types.Member) (types.Member, error)
	SetToken(ctx context.Context, id int64, token string) error
}

// MemberService encapsulates member use-cases.
type MemberService struct {
	repo MemberRepository
}

func NewMemberService(repo MemberRepository) *MemberService {
	return &MemberService{repo: repo}
}

func (s *MemberService) GetByID(ctx context.Context, id int64) (types.Member, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *MemberService) GetByUsername(ctx context.Context, username string) (types.Member, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *MemberService) GetByToken(ctx context.Context, token string) (types.Member, error) {
	return s.repo.GetByToken(ctx, token)
}

func (s *MemberService) Create(ctx context.Context, member types.Member) (types.Member, error) {
	return s.repo.Create(ctx, member)
}

// SetToken binds a freshly issued token to the member, replacing any
// previous one.
func (s *MemberService) SetToken(ctx context.Context, id int64, token string) error {
	return s.repo.SetToken(ctx, id, token)
}
