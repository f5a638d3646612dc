package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cuemby/groupsync/pkg/types"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// FileService is a GroupService backed by a YAML directory file. It stands
// in for a hosted group service during local runs and dry rehearsals.
//
//	groups:
//	  staff@x.com:
//	    - {id: 3f0c..., email: ada@x.com, role: MEMBER}
type FileService struct {
	path string
	mu   sync.Mutex
}

type directory struct {
	Groups map[string][]types.RemoteMember `yaml:"groups"`
}

// NewFileService creates a service over path; a missing file is an empty directory
func NewFileService(path string) *FileService {
	return &FileService{path: path}
}

func (s *FileService) Members(ctx context.Context, groupID string) ([]types.RemoteMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir, err := s.load()
	if err != nil {
		return nil, err
	}
	return append([]types.RemoteMember(nil), dir.Groups[groupID]...), nil
}

func (s *FileService) DeleteMembers(ctx context.Context, groupID string, emails []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir, err := s.load()
	if err != nil {
		return err
	}

	drop := make(map[string]bool, len(emails))
	for _, email := range emails {
		drop[types.NormalizeEmail(email)] = true
	}
	kept := dir.Groups[groupID][:0]
	for _, m := range dir.Groups[groupID] {
		if !drop[types.NormalizeEmail(m.Email)] {
			kept = append(kept, m)
		}
	}
	dir.Groups[groupID] = kept
	return s.save(dir)
}

func (s *FileService) AddMembers(ctx context.Context, groupID string, emails []string, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir, err := s.load()
	if err != nil {
		return err
	}

	existing := make(map[string]bool, len(dir.Groups[groupID]))
	for _, m := range dir.Groups[groupID] {
		existing[types.NormalizeEmail(m.Email)] = true
	}
	for _, email := range emails {
		if existing[types.NormalizeEmail(email)] {
			return fmt.Errorf("member already exists: %s", email)
		}
	}
	for _, email := range emails {
		dir.Groups[groupID] = append(dir.Groups[groupID], types.RemoteMember{
			ID:    uuid.New().String(),
			Email: email,
			Role:  role,
		})
	}
	sort.Slice(dir.Groups[groupID], func(i, j int) bool {
		return dir.Groups[groupID][i].Email < dir.Groups[groupID][j].Email
	})
	return s.save(dir)
}

func (s *FileService) load() (*directory, error) {
	dir := &directory{}
	data, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read group directory: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, dir); err != nil {
			return nil, fmt.Errorf("failed to parse group directory: %w", err)
		}
	}
	if dir.Groups == nil {
		dir.Groups = make(map[string][]types.RemoteMember)
	}
	return dir, nil
}

// save writes through a temp file so a crash never leaves a torn directory
func (s *FileService) save(dir *directory) error {
	data, err := yaml.Marshal(dir)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".groups-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write group directory: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write group directory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
