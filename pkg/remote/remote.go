// Package remote defines the remote group service the pipeline reconciles
// against, with an in-memory implementation and a YAML file directory.
package remote

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/cuemby/groupsync/pkg/errors"
	"github.com/cuemby/groupsync/pkg/types"
)

// RoleMember is the default role granted to added members
const RoleMember = "MEMBER"

// GroupService is the remote side of a reconciliation. Batch calls are
// all-or-nothing from the caller's point of view.
type GroupService interface {
	Members(ctx context.Context, groupID string) ([]types.RemoteMember, error)
	DeleteMembers(ctx context.Context, groupID string, emails []string) error
	AddMembers(ctx context.Context, groupID string, emails []string, role string) error
}

// MemoryService is an in-process GroupService. Failures can be injected per
// operation for tests.
type MemoryService struct {
	mu     sync.Mutex
	groups map[string]map[string]types.RemoteMember
	nextID int
	failOn map[string]error
	calls  []Call
}

// Call records one batch call made against a MemoryService
type Call struct {
	Op      string
	GroupID string
	Emails  []string
	Role    string
}

// Operation names used for failure injection and call records
const (
	OpMembers = "get-members"
	OpDelete  = "delete-members"
	OpAdd     = "add-members"
)

// NewMemoryService creates an empty service
func NewMemoryService() *MemoryService {
	return &MemoryService{
		groups: make(map[string]map[string]types.RemoteMember),
		failOn: make(map[string]error),
	}
}

// Seed sets the members of a group, replacing any existing ones
func (s *MemoryService) Seed(groupID string, emails ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := make(map[string]types.RemoteMember, len(emails))
	for _, email := range emails {
		s.nextID++
		members[types.NormalizeEmail(email)] = types.RemoteMember{ID: memberID(s.nextID), Email: email, Role: RoleMember}
	}
	s.groups[groupID] = members
}

// FailOn makes every later call of op return err; a nil err clears it
func (s *MemoryService) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, op)
		return
	}
	s.failOn[op] = err
}

// Calls returns the batch calls made so far, excluding reads
func (s *MemoryService) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Emails returns the sorted member emails of a group
func (s *MemoryService) Emails(groupID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	emails := make([]string, 0, len(s.groups[groupID]))
	for email := range s.groups[groupID] {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	return emails
}

func (s *MemoryService) Members(ctx context.Context, groupID string) ([]types.RemoteMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[OpMembers]; err != nil {
		return nil, err
	}
	members := make([]types.RemoteMember, 0, len(s.groups[groupID]))
	for _, m := range s.groups[groupID] {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Email < members[j].Email })
	return members, nil
}

func (s *MemoryService) DeleteMembers(ctx context.Context, groupID string, emails []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[OpDelete]; err != nil {
		return err
	}
	s.calls = append(s.calls, Call{Op: OpDelete, GroupID: groupID, Emails: append([]string(nil), emails...)})
	for _, email := range emails {
		delete(s.groups[groupID], types.NormalizeEmail(email))
	}
	return nil
}

func (s *MemoryService) AddMembers(ctx context.Context, groupID string, emails []string, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[OpAdd]; err != nil {
		return err
	}
	members := s.groups[groupID]
	if members == nil {
		members = make(map[string]types.RemoteMember)
		s.groups[groupID] = members
	}
	for _, email := range emails {
		if _, exists := members[types.NormalizeEmail(email)]; exists {
			return errors.New("member already exists: " + email)
		}
	}
	s.calls = append(s.calls, Call{Op: OpAdd, GroupID: groupID, Emails: append([]string(nil), emails...), Role: role})
	for _, email := range emails {
		s.nextID++
		members[types.NormalizeEmail(email)] = types.RemoteMember{ID: memberID(s.nextID), Email: email, Role: role}
	}
	return nil
}

func memberID(n int) string {
	return "m" + strconv.Itoa(n)
}
